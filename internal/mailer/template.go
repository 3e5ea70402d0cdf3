// Rewatched - Media Server Year in Review
// Copyright 2026 Rewatched contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rewatched/rewatched

package mailer

import (
	"bytes"
	"html/template"

	"github.com/rewatched/rewatched/internal/models"
)

// reportTemplate is the HTML body of the report email. User content flows
// through html/template and is escaped on output.
var reportTemplate = template.Must(template.New("report").Parse(`<!DOCTYPE html>
<html>
<head><meta charset="UTF-8"></head>
<body style="margin:0;padding:0;background:#0f1116;font-family:Helvetica,Arial,sans-serif;color:#e6e6e6;">
  <div style="max-width:560px;margin:0 auto;padding:32px 24px;">
    <h1 style="font-size:22px;margin:0 0 8px;">Your {{.Year}} in review</h1>
    <p style="margin:0 0 24px;color:#9aa0ab;">Hi {{.Username}}, here is what you watched this year.</p>

    <table role="presentation" width="100%" cellpadding="0" cellspacing="0" style="margin-bottom:24px;">
      <tr>
        <td style="padding:16px;background:#1a1d24;border-radius:8px;">
          <div style="font-size:28px;font-weight:bold;">{{.Hours}}</div>
          <div style="color:#9aa0ab;">hours watched</div>
        </td>
        <td style="width:12px;"></td>
        <td style="padding:16px;background:#1a1d24;border-radius:8px;">
          <div style="font-size:28px;font-weight:bold;">{{.Plays}}</div>
          <div style="color:#9aa0ab;">plays</div>
        </td>
      </tr>
    </table>

    {{if .TopShow}}<p style="margin:0 0 8px;">Most watched show: <strong>{{.TopShow}}</strong></p>{{end}}
    {{if .TopMovie}}<p style="margin:0 0 8px;">Most watched movie: <strong>{{.TopMovie}}</strong></p>{{end}}
    {{if .StreakDays}}<p style="margin:0 0 8px;">Longest streak: <strong>{{.StreakDays}} days in a row</strong></p>{{end}}

    <p style="margin:24px 0;">
      <a href="{{.ReportURL}}" style="display:inline-block;padding:12px 24px;background:#e5a00d;color:#0f1116;border-radius:6px;text-decoration:none;font-weight:bold;">See your full report</a>
    </p>

    <p style="margin:0;color:#5c626e;font-size:12px;">This link is personal to you. It was generated by your media server's Rewatched instance.</p>
  </div>
</body>
</html>
`))

type reportData struct {
	Username   string
	Year       int
	Hours      int
	Plays      int
	TopShow    string
	TopMovie   string
	StreakDays int
	ReportURL  string
}

func renderHTML(username string, stats *models.UserYearStats, reportURL string) (string, error) {
	data := reportData{
		Username:  username,
		Year:      stats.Year,
		Hours:     hoursWatched(stats),
		Plays:     stats.TotalPlays,
		ReportURL: reportURL,
	}
	if len(stats.TopShows) > 0 {
		data.TopShow = stats.TopShows[0].Title
	}
	if len(stats.TopMovies) > 0 {
		data.TopMovie = stats.TopMovies[0].Title
	}
	if stats.LongestStreak != nil {
		data.StreakDays = stats.LongestStreak.Days
	}

	var buf bytes.Buffer
	if err := reportTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
