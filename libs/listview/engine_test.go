package listview

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type member struct {
	ID       string
	Name     string
	Email    string
	Role     string
	Barangay string
	Joined   string
	Score    int
	Status   string
}

func memberSchema() Schema[member] {
	return Schema[member]{
		ID: func(m member) string { return m.ID },
		Search: []func(member) string{
			func(m member) string { return m.Name },
			func(m member) string { return m.Email },
		},
		Categories: map[string]Accessor[member]{
			"role":     func(m member) Value { return Text(m.Role) },
			"barangay": func(m member) Value { return Text(m.Barangay) },
		},
		Sorts: map[string]Accessor[member]{
			"name":   func(m member) Value { return Text(m.Name) },
			"joined": func(m member) Value { return Date(m.Joined) },
			"score":  func(m member) Value { return Int(m.Score) },
		},
		DefaultSort: SortSpec{Field: "name", Direction: Ascending},
	}
}

func ids(records []member) []string {
	out := make([]string, 0, len(records))
	for _, record := range records {
		out = append(out, record.ID)
	}
	return out
}

var members = []member{
	{ID: "1", Name: "Ana", Email: "ana@poblacion.ph", Role: "captain", Barangay: "Poblacion", Joined: "2026-03-01", Score: 3},
	{ID: "2", Name: "Ben", Email: "ben@mabini.ph", Role: "secretary", Barangay: "Mabini", Joined: "2026-01-15T08:00:00Z", Score: 1},
	{ID: "3", Name: "Carla", Email: "carla@poblacion.ph", Role: "secretary", Barangay: "Poblacion", Joined: "not a date", Score: 3},
	{ID: "4", Name: "Dan", Email: "dan@rizal.ph", Role: "captain", Barangay: "Rizal", Joined: "2026-02-10 09:30:00", Score: 2},
}

func TestDeriveSearch(t *testing.T) {
	tests := []struct {
		name   string
		search string
		want   []string
	}{
		{name: "empty keeps all", search: "", want: []string{"1", "2", "3", "4"}},
		{name: "case insensitive name", search: "CARLA", want: []string{"3"}},
		{name: "matches any field", search: "poblacion", want: []string{"1", "3"}},
		{name: "substring", search: "an", want: []string{"1", "4"}},
		{name: "no match", search: "zamboanga", want: []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Derive(members, memberSchema(), FilterSpec{Search: tt.search}, SortSpec{})
			assert.Equal(t, tt.want, ids(got))
		})
	}
}

func TestDeriveCategoriesAreConjunctive(t *testing.T) {
	schema := memberSchema()

	got := Derive(members, schema, FilterSpec{Categories: map[string]string{"role": "secretary"}}, SortSpec{})
	assert.Equal(t, []string{"2", "3"}, ids(got))

	got = Derive(members, schema, FilterSpec{Categories: map[string]string{"role": "secretary", "barangay": "Poblacion"}}, SortSpec{})
	assert.Equal(t, []string{"3"}, ids(got))

	got = Derive(members, schema, FilterSpec{Categories: map[string]string{"role": All, "barangay": ""}}, SortSpec{})
	assert.Len(t, got, len(members))
}

func TestDeriveSearchAndCategoriesCombine(t *testing.T) {
	filter := FilterSpec{Search: "poblacion", Categories: map[string]string{"role": "captain"}}
	got := Derive(members, memberSchema(), filter, SortSpec{})
	assert.Equal(t, []string{"1"}, ids(got))
}

func TestDeriveIsPure(t *testing.T) {
	input := append([]member(nil), members...)
	filter := FilterSpec{Search: "o", Categories: map[string]string{"barangay": "Poblacion"}}
	sort := SortSpec{Field: "score", Direction: Descending}

	first := Derive(input, memberSchema(), filter, sort)
	second := Derive(input, memberSchema(), filter, sort)

	assert.Equal(t, first, second)
	assert.Equal(t, members, input)
}

func TestDeriveSortIsStableBothDirections(t *testing.T) {
	schema := memberSchema()

	asc := Derive(members, schema, FilterSpec{}, SortSpec{Field: "score", Direction: Ascending})
	assert.Equal(t, []string{"2", "4", "1", "3"}, ids(asc))

	desc := Derive(members, schema, FilterSpec{}, SortSpec{Field: "score", Direction: Descending})
	assert.Equal(t, []string{"1", "3", "4", "2"}, ids(desc))
}

func TestDeriveDateSortPutsUnparseableLowest(t *testing.T) {
	schema := memberSchema()

	asc := Derive(members, schema, FilterSpec{}, SortSpec{Field: "joined", Direction: Ascending})
	assert.Equal(t, []string{"3", "2", "4", "1"}, ids(asc))

	desc := Derive(members, schema, FilterSpec{}, SortSpec{Field: "joined", Direction: Descending})
	assert.Equal(t, []string{"1", "4", "2", "3"}, ids(desc))
}

func TestDeriveUnknownSortKeepsCollectionOrder(t *testing.T) {
	got := Derive(members, memberSchema(), FilterSpec{}, SortSpec{Field: "unknown", Direction: Descending})
	assert.Equal(t, []string{"1", "2", "3", "4"}, ids(got))
}

func TestDeriveScope(t *testing.T) {
	records := []member{
		{ID: "1", Name: "A", Status: "pending"},
		{ID: "2", Name: "B", Status: "approved"},
		{ID: "3", Name: "C", Status: "pending"},
	}
	schema := memberSchema()
	schema.Scope = func(m member) bool { return m.Status == "pending" }

	got := Derive(records, schema, FilterSpec{}, schema.DefaultSort)
	assert.Equal(t, []string{"1", "3"}, ids(got))
}

func TestDeriveMissingValueFailsSelection(t *testing.T) {
	schema := memberSchema()
	schema.Categories["barangay"] = func(m member) Value {
		if m.Barangay == "" {
			return Missing()
		}
		return Text(m.Barangay)
	}
	records := []member{{ID: "1", Barangay: ""}, {ID: "2", Barangay: "Rizal"}}

	got := Derive(records, schema, FilterSpec{Categories: map[string]string{"barangay": "Rizal"}}, SortSpec{})
	assert.Equal(t, []string{"2"}, ids(got))
}

func TestSortToggle(t *testing.T) {
	spec := SortSpec{Field: "name", Direction: Ascending}

	spec = spec.Toggle("name")
	assert.Equal(t, SortSpec{Field: "name", Direction: Descending}, spec)

	spec = spec.Toggle("name")
	assert.Equal(t, SortSpec{Field: "name", Direction: Ascending}, spec)

	spec = spec.Toggle("name").Toggle("score")
	assert.Equal(t, SortSpec{Field: "score", Direction: Ascending}, spec)
}

func TestSortToggleReversesDerivedOrder(t *testing.T) {
	schema := memberSchema()
	spec := SortSpec{}.Toggle("name")
	asc := ids(Derive(members, schema, FilterSpec{}, spec))
	desc := ids(Derive(members, schema, FilterSpec{}, spec.Toggle("name")))

	require.Len(t, desc, len(asc))
	for i := range asc {
		assert.Equal(t, asc[i], desc[len(desc)-1-i])
	}
}

func TestSchemaValidate(t *testing.T) {
	schema := memberSchema()
	require.NoError(t, schema.Validate())

	schema.DefaultSort.Field = "missing"
	assert.Error(t, schema.Validate())

	schema = memberSchema()
	schema.ID = nil
	assert.Error(t, schema.Validate())
}

func TestParseDirection(t *testing.T) {
	assert.Equal(t, Descending, ParseDirection("DESC"))
	assert.Equal(t, Ascending, ParseDirection("asc"))
	assert.Equal(t, Ascending, ParseDirection("sideways"))
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "3", Int(3).String())
	assert.Equal(t, "2.5", Number(2.5).String())
	assert.False(t, Date("2026-13-45").Defined())
	assert.False(t, Optional(nil).Defined())
	name := "Rizal"
	assert.Equal(t, "Rizal", Optional(&name).String())
}
