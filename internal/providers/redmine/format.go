package redmine

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// descriptionLimit is how many characters of a description the long format shows.
const descriptionLimit = 200

func nameOr(v *IDName, fallback string) string {
	if v == nil || v.Name == "" {
		return fallback
	}
	return v.Name
}

// IssueURL links to the issue in the Redmine web UI.
func IssueURL(baseURL string, id int) string {
	return fmt.Sprintf("%s/issues/%d", strings.TrimRight(baseURL, "/"), id)
}

// FormatIssueShort renders one line: **[#id](url) - subject (status)**.
func FormatIssueShort(baseURL string, issue Issue) string {
	subject := issue.Subject
	if subject == "" {
		subject = "Untitled"
	}
	return fmt.Sprintf("**[#%d](%s) - %s (%s)**", issue.ID, IssueURL(baseURL, issue.ID), subject, nameOr(issue.Status, "Unknown"))
}

// FormatIssueLong renders the multi-line issue card.
func FormatIssueLong(baseURL string, issue Issue) string {
	subject := issue.Subject
	if subject == "" {
		subject = "Untitled"
	}

	description := ""
	if issue.Description != "" {
		description = issue.Description
		if utf8.RuneCountInString(description) > descriptionLimit {
			description = string([]rune(description)[:descriptionLimit])
		}
		description += "..."
	}

	var b strings.Builder
	fmt.Fprintf(&b, "🎯 **Issue #%d**\n", issue.ID)
	fmt.Fprintf(&b, "🔗 **Link:** %s\n", IssueURL(baseURL, issue.ID))
	fmt.Fprintf(&b, "📝 **Subject:** %s\n", subject)
	fmt.Fprintf(&b, "📊 **Status:** %s\n", nameOr(issue.Status, "Unknown"))
	fmt.Fprintf(&b, "⚡ **Priority:** %s\n", nameOr(issue.Priority, "Unknown"))
	fmt.Fprintf(&b, "👤 **Assignee:** %s\n", nameOr(issue.AssignedTo, "Unassigned"))
	fmt.Fprintf(&b, "📄 **Description:** %s", description)
	return b.String()
}

// FormatIssueList renders a heading followed by one short line per issue.
func FormatIssueList(baseURL, heading string, issues []Issue) string {
	lines := make([]string, 0, len(issues))
	for _, is := range issues {
		lines = append(lines, FormatIssueShort(baseURL, is))
	}
	return heading + "\n\n" + strings.Join(lines, "\n")
}

// UserStatusName maps a Redmine status code to its name.
func UserStatusName(status int) string {
	switch status {
	case UserStatusActive:
		return "active"
	case UserStatusRegistered:
		return "registered"
	case UserStatusLocked:
		return "locked"
	}
	return "unknown"
}

// ParseUserStatus accepts a status name or its numeric code.
func ParseUserStatus(s string) (int, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "active", "1":
		return UserStatusActive, true
	case "registered", "2":
		return UserStatusRegistered, true
	case "locked", "3":
		return UserStatusLocked, true
	}
	return 0, false
}
