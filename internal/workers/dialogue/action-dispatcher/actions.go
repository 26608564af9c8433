// internal/workers/dialogue/action-dispatcher/actions.go
package actiondispatcher

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"

	"dialogue-engine/internal/providers/redmine"
)

const (
	myIssuesLimit   = 5
	byDateLimit     = 10
	byNameLimit     = 5
	wikiPreviewSize = 200
)

func (h *Handler) accessToRedmine(ctx context.Context, _ Args) (string, error) {
	if err := h.redmine.Ping(ctx); err != nil {
		return "", err
	}
	return "✅ Redmine API access confirmed", nil
}

func (h *Handler) getMyIssues(ctx context.Context, args Args) (string, error) {
	status := "*"
	if args.Has("status") {
		status = args.String("status")
	}
	issues, err := h.redmine.ListIssues(ctx, redmine.IssueFilter{
		AssignedToID: h.config.UserID,
		StatusID:     status,
		Limit:        myIssuesLimit,
	})
	if err != nil {
		return "", err
	}
	if len(issues) == 0 {
		return "📋 No issues found", nil
	}
	return redmine.FormatIssueList(h.redmine.BaseURL(), "📋 Your issues:", issues), nil
}

func (h *Handler) getIssueByID(ctx context.Context, args Args) (string, error) {
	id, err := args.IssueID("issue_id")
	if err != nil {
		return "", err
	}
	issue, err := h.redmine.GetIssue(ctx, id)
	if err != nil {
		return "", err
	}
	return redmine.FormatIssueLong(h.redmine.BaseURL(), *issue), nil
}

func (h *Handler) getIssueByDate(ctx context.Context, args Args) (string, error) {
	date := ParseDate(args.String("date"), h.now())
	issues, err := h.redmine.ListIssues(ctx, redmine.IssueFilter{
		AssignedToID: h.config.UserID,
		UpdatedOn:    ">=" + date,
		Limit:        byDateLimit,
	})
	if err != nil {
		return "", err
	}
	if len(issues) == 0 {
		return fmt.Sprintf("📅 No issues found for %s", date), nil
	}
	return redmine.FormatIssueList(h.redmine.BaseURL(), fmt.Sprintf("📅 Issues for %s:", date), issues), nil
}

func (h *Handler) getIssueByName(ctx context.Context, args Args) (string, error) {
	name, err := args.Require("name")
	if err != nil {
		return "", err
	}
	issues, err := h.redmine.ListIssues(ctx, redmine.IssueFilter{
		AssignedToID: h.config.UserID,
		StatusID:     "open",
		Subject:      name,
		Limit:        byNameLimit,
	})
	if err != nil {
		return "", err
	}
	if len(issues) == 0 {
		return fmt.Sprintf("🔍 Nothing found for '%s'", name), nil
	}
	return redmine.FormatIssueList(h.redmine.BaseURL(), fmt.Sprintf("🔍 Results for '%s':", name), issues), nil
}

func (h *Handler) getIssueStatus(ctx context.Context, args Args) (string, error) {
	if args.Has("issue_id") {
		id, err := args.IssueID("issue_id")
		if err != nil {
			return "", err
		}
		issue, err := h.redmine.GetIssue(ctx, id)
		if err != nil {
			return "", err
		}
		return "📊 " + redmine.FormatIssueShort(h.redmine.BaseURL(), *issue), nil
	}

	name, err := args.Require("name")
	if err != nil {
		return "", err
	}
	issues, err := h.redmine.ListIssues(ctx, redmine.IssueFilter{
		AssignedToID: h.config.UserID,
		StatusID:     "*",
		Subject:      name,
		Limit:        1,
	})
	if err != nil {
		return "", err
	}
	if len(issues) == 0 {
		return fmt.Sprintf("🔍 Nothing found for '%s'", name), nil
	}
	return "📊 " + redmine.FormatIssueShort(h.redmine.BaseURL(), issues[0]), nil
}

func (h *Handler) getIssueHours(ctx context.Context, args Args) (string, error) {
	name, err := args.Require("name")
	if err != nil {
		return "", err
	}
	issues, err := h.redmine.ListIssues(ctx, redmine.IssueFilter{
		AssignedToID: h.config.UserID,
		StatusID:     "*",
		Subject:      name,
		Limit:        1,
	})
	if err != nil {
		return "", err
	}
	if len(issues) == 0 {
		return fmt.Sprintf("🔍 Nothing found for '%s'", name), nil
	}
	is := issues[0]
	return fmt.Sprintf("⏱️ **Issue #%d** %s\nEstimated: %s h\nSpent: %s h",
		is.ID, is.Subject, hours(is.EstimatedHours), hours(is.SpentHours)), nil
}

func hours(v *float64) string {
	if v == nil {
		return "not set"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func (h *Handler) fillIssueHours(ctx context.Context, args Args) (string, error) {
	id, err := args.IssueID("issue_id")
	if err != nil {
		return "", err
	}
	spent, err := args.Float("hours")
	if err != nil {
		return "", err
	}
	if spent <= 0 {
		return "", fmt.Errorf("%w: hours must be positive", ErrInvalidArgument)
	}

	entry := redmine.TimeEntry{
		IssueID: id,
		Hours:   spent,
		SpentOn: ParseDate(args.String("date"), h.now()),
	}
	if args.Has("description") {
		entry.Comments = args.String("description")
	}
	if err := h.redmine.CreateTimeEntry(ctx, entry); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Logged %s h on issue #%d for %s", strconv.FormatFloat(spent, 'f', -1, 64), id, entry.SpentOn), nil
}

func (h *Handler) userID(args Args) string {
	id := args.String("user_id")
	if id == Unknown || strings.EqualFold(id, "me") {
		return h.config.UserID
	}
	return id
}

func (h *Handler) getUserStatus(ctx context.Context, args Args) (string, error) {
	user, err := h.redmine.GetUser(ctx, h.userID(args))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("👤 %s %s (%s): %s", user.Firstname, user.Lastname, user.Login, redmine.UserStatusName(user.Status)), nil
}

func (h *Handler) setUserStatus(ctx context.Context, args Args) (string, error) {
	status, ok := redmine.ParseUserStatus(args.String("status"))
	if !ok {
		return "", fmt.Errorf("%w: unsupported user status %q", ErrInvalidArgument, args.String("status"))
	}
	if err := h.redmine.UpdateUserStatus(ctx, h.userID(args), status); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ User status changed to: %s", redmine.UserStatusName(status)), nil
}

func (h *Handler) createIssue(ctx context.Context, args Args) (string, error) {
	subject, err := args.Require("subject")
	if err != nil {
		return "", err
	}
	issue := redmine.NewIssue{
		ProjectID: h.config.ProjectID,
		Subject:   subject,
	}
	if args.Has("description") {
		issue.Description = args.String("description")
	}
	if args.Has("priority") {
		issue.PriorityID = h.priorityID(ctx, args.String("priority"))
	}

	created, err := h.redmine.CreateIssue(ctx, issue)
	if err != nil {
		return "", err
	}
	return "✅ Issue created\n\n" + redmine.FormatIssueLong(h.redmine.BaseURL(), *created), nil
}

// priorityID resolves a priority name. An unresolvable name leaves the
// Redmine default in place.
func (h *Handler) priorityID(ctx context.Context, name string) int {
	if id, err := strconv.Atoi(name); err == nil {
		return id
	}
	priorities, err := h.redmine.ListPriorities(ctx)
	if err != nil {
		h.logger.Warn("priority lookup failed, using default", map[string]interface{}{"error": err.Error()})
		return 0
	}
	for _, p := range priorities {
		if strings.EqualFold(p.Name, name) {
			return p.ID
		}
	}
	return 0
}

func (h *Handler) assignIssue(ctx context.Context, args Args) (string, error) {
	id, err := args.IssueID("issue_id")
	if err != nil {
		return "", err
	}
	assignee := h.userID(args)
	if err := h.redmine.UpdateIssue(ctx, id, redmine.IssueUpdate{AssignedToID: assignee}); err != nil {
		return "", err
	}
	return fmt.Sprintf("✅ Issue #%d assigned to user %s", id, assignee), nil
}

func (h *Handler) getWikiInfo(ctx context.Context, args Args) (string, error) {
	topic, err := args.Require("topic")
	if err != nil {
		return "", err
	}
	page, err := h.redmine.GetWikiPage(ctx, h.config.ProjectID, topic)
	if err != nil {
		return "", err
	}
	text := page.Text
	if utf8.RuneCountInString(text) > wikiPreviewSize {
		text = string([]rune(text)[:wikiPreviewSize])
	}
	return fmt.Sprintf("📖 Wiki information about %s:\n\n%s...", topic, text), nil
}

func (h *Handler) getGoogleSearch(ctx context.Context, args Args) (string, error) {
	if h.web == nil {
		return "", fmt.Errorf("web search is not configured")
	}
	query, err := args.Require("query")
	if err != nil {
		return "", err
	}
	res := h.web.Gather(ctx, query, h.config.SearchCount)
	if !res.Success {
		return "❌ " + res.Message, nil
	}
	if len(res.Items) == 0 {
		return fmt.Sprintf("🔍 Nothing found on the web for '%s'", query), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🔍 **Web search results for:** '%s'\n", query)
	for i, it := range res.Items {
		fmt.Fprintf(&b, "\n**%d. %s**\n🔗 %s\n📄 %s\n", i+1, it.Title, it.URLOrID, it.Snippet)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
