package main

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"brims/libs/listview"

	"github.com/gin-gonic/gin"
)

const consoleApprovalsPath = "/console/approvals"

func (a *App) consoleApprovalsPageHandler(c *gin.Context) {
	ws := workspaceFromContext(c)
	lang := a.consoleLanguageFromRequest(c)
	base := a.consoleBaseData(c, "page_title_approvals", screenApprovals)

	if err := loadListRequest(c, ws.approvals, approvalsCategories); err != nil {
		a.log.Warn("load pending users failed", "workspace", ws.id, "error", err)
		base = withAlert(base, consoleText(lang, "error_load_failed"), normalizeConsoleErrorMessage(err, lang, "error_generic"))
	}

	view := ws.approvals.View()
	list := buildListControls(lang, consoleApprovalsPath, view, ws.approvals.Store().Snapshot(), approvalsSchema(), approvalsCategories, approvalsColumns)

	rows := make([]consoleApprovalRowView, 0, len(view.Items))
	for _, user := range view.Items {
		id := user.ID.String()
		rows = append(rows, consoleApprovalRowView{
			ID:         id,
			Name:       user.FullName(),
			Email:      user.Email,
			Role:       user.Role,
			Position:   user.Position,
			Barangay:   user.Barangay,
			Registered: consoleDisplayTime(user.CreatedAt),
			ApproveURL: consoleApprovalsPath + "/" + id + "/approve",
			RejectURL:  withReturn(consoleApprovalsPath+"/"+id+"/reject", list.ReturnPath),
		})
	}

	a.renderConsoleTemplate(c, http.StatusOK, consoleTemplateApprovalsPath, consoleApprovalsViewData{
		consoleBaseViewData: base,
		List:                list,
		Rows:                rows,
		BulkPath:            consoleApprovalsPath + "/bulk",
	})
}

func (a *App) approveUserAction(lang string) listview.Action[PendingUser] {
	return listview.Action[PendingUser]{
		Name: "approve",
		Call: func(ctx context.Context, id string) (*PendingUser, error) {
			return nil, a.consoleApproveUser(ctx, id)
		},
		Patch: func(u PendingUser) PendingUser {
			u.Status = userStatusApproved
			return u
		},
		SuccessMessage: consoleText(lang, "notice_user_approved"),
		FailureTitle:   consoleText(lang, "error_approve_failed"),
	}
}

// consoleApproveUserHandler approves one registration directly; approval
// needs no reason.
func (a *App) consoleApproveUserHandler(c *gin.Context) {
	ws := workspaceFromContext(c)
	lang := a.consoleLanguageFromRequest(c)
	returnPath := returnTarget(c, consoleApprovalsPath)
	id := strings.TrimSpace(c.Param("id"))

	recorder := &listview.Recorder{}
	_ = ws.approvals.Act(c.Request.Context(), id, recorder, a.approveUserAction(lang))
	redirectConsoleWithNotices(c, returnPath, recorder.Notices())
}

func consoleApprovalsReturn(*gin.Context) string { return consoleApprovalsPath }

func (a *App) rejectUserFlow() flowScreen[reasonInput] {
	minimum := a.cfg.Settings.Reasons.RejectMin
	return flowScreen[reasonInput]{
		headingKey: "page_title_reject",
		confirmKey: "confirm_reject_body",
		nav:        screenApprovals,
		returnPath: consoleApprovalsReturn,
		flow:       func(ws *workspace) *listview.Flow[reasonInput] { return ws.rejectFlow },
		target:     func(c *gin.Context) string { return strings.TrimSpace(c.Param("id")) },
		open: func(c *gin.Context, ws *workspace, target string) (reasonInput, error) {
			if err := ws.approvals.EnsureLoaded(c.Request.Context()); err != nil {
				return reasonInput{}, err
			}
			if _, ok := ws.approvals.Store().Find(target); !ok {
				return reasonInput{}, errFlowTargetMissing
			}
			return reasonInput{}, nil
		},
		fields: func(lang string, input reasonInput) []consoleFormFieldView {
			return []consoleFormFieldView{{
				Name:      "reason",
				Label:     consoleText(lang, "field_reason"),
				Kind:      "textarea",
				Value:     input.Reason,
				Required:  true,
				MinLength: minimum,
				Hint:      consoleMinLengthHint(lang, minimum),
			}}
		},
		bind: func(c *gin.Context, _ *workspace, _ reasonInput) reasonInput {
			return reasonInput{Reason: strings.TrimSpace(c.PostForm("reason"))}
		},
		summary: func(lang string, ws *workspace, target string, input reasonInput) []consoleSummaryLine {
			lines := pendingUserSummary(lang, ws, target)
			if input.Reason != "" {
				lines = append(lines, consoleSummaryLine{Label: consoleText(lang, "field_reason"), Value: input.Reason})
			}
			return lines
		},
		submit: func(ctx context.Context, ws *workspace, lang string, n listview.Notifier, target string, input reasonInput) error {
			return ws.approvals.Act(ctx, target, n, listview.Action[PendingUser]{
				Name: "reject",
				Call: func(ctx context.Context, id string) (*PendingUser, error) {
					return nil, a.consoleRejectUser(ctx, id, input.Reason)
				},
				Patch: func(u PendingUser) PendingUser {
					u.Status = userStatusRejected
					return u
				},
				SuccessMessage: consoleText(lang, "notice_user_rejected"),
				FailureTitle:   consoleText(lang, "error_reject_failed"),
			})
		},
	}
}

func pendingUserSummary(lang string, ws *workspace, id string) []consoleSummaryLine {
	user, ok := ws.approvals.Store().Find(id)
	if !ok {
		return nil
	}
	return []consoleSummaryLine{
		{Label: consoleText(lang, "field_name"), Value: user.FullName()},
		{Label: consoleText(lang, "field_email"), Value: user.Email},
		{Label: consoleText(lang, "field_barangay"), Value: user.Barangay},
	}
}

// bulkApproveFlow approves several registrations as one batch. The
// selection is either the checked rows or every row of the current page.
func (a *App) bulkApproveFlow() flowScreen[bulkSelection] {
	return flowScreen[bulkSelection]{
		headingKey: "page_title_bulk_approve",
		confirmKey: "confirm_bulk_body",
		nav:        screenApprovals,
		returnPath: consoleApprovalsReturn,
		flow:       func(ws *workspace) *listview.Flow[bulkSelection] { return ws.bulkFlow },
		target:     func(*gin.Context) string { return listview.BatchTarget },
		open: func(c *gin.Context, ws *workspace, _ string) (bulkSelection, error) {
			return bulkSelection{}, ws.approvals.EnsureLoaded(c.Request.Context())
		},
		fields: func(lang string, input bulkSelection) []consoleFormFieldView {
			fields := make([]consoleFormFieldView, 0, len(input.IDs))
			for _, id := range input.IDs {
				fields = append(fields, consoleFormFieldView{Name: "ids", Kind: "hidden", Value: id})
			}
			return fields
		},
		bind: func(c *gin.Context, ws *workspace, _ bulkSelection) bulkSelection {
			if c.PostForm("scope") == "page" {
				items := ws.approvals.View().Items
				ids := make([]string, 0, len(items))
				for _, user := range items {
					ids = append(ids, user.ID.String())
				}
				return bulkSelection{IDs: ids}
			}
			return bulkSelection{IDs: selectedIDs(c.PostFormArray("ids"))}
		},
		summary: func(lang string, ws *workspace, _ string, input bulkSelection) []consoleSummaryLine {
			lines := make([]consoleSummaryLine, 0, len(input.IDs)+1)
			lines = append(lines, consoleSummaryLine{Label: consoleText(lang, "field_count"), Value: strconv.Itoa(len(input.IDs))})
			for _, id := range input.IDs {
				if user, ok := ws.approvals.Store().Find(id); ok {
					lines = append(lines, consoleSummaryLine{Label: user.FullName(), Value: user.Email})
				}
			}
			return lines
		},
		submit: func(ctx context.Context, ws *workspace, lang string, n listview.Notifier, _ string, input bulkSelection) error {
			return ws.approvals.ActBatch(ctx, input.IDs, n, a.approveUserAction(lang))
		},
	}
}

// selectedIDs trims and de-duplicates checkbox values, keeping their order.
func selectedIDs(raw []string) []string {
	seen := map[string]bool{}
	ids := make([]string, 0, len(raw))
	for _, value := range raw {
		id := strings.TrimSpace(value)
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}
