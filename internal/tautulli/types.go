// Rewatched - Media Server Year in Review
// Copyright 2026 Rewatched contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/rewatched/rewatched

package tautulli

// responseWrapper is the envelope every Tautulli v2 API response shares.
type responseWrapper struct {
	Result  string  `json:"result"`
	Message *string `json:"message,omitempty"`
}

// History is the response of the get_history command.
type History struct {
	Response HistoryResponse `json:"response"`
}

type HistoryResponse struct {
	Result  string      `json:"result"`
	Message *string     `json:"message,omitempty"`
	Data    HistoryData `json:"data"`
}

type HistoryData struct {
	RecordsFiltered int             `json:"recordsFiltered"`
	RecordsTotal    int             `json:"recordsTotal"`
	Data            []HistoryRecord `json:"data"`
}

// HistoryRecord is one playback row from get_history, trimmed to the fields
// the aggregation pipeline consumes. Pointer fields are nullable in the API.
//
// Duration is in SECONDS, unlike get_activity which reports milliseconds.
type HistoryRecord struct {
	Date    int64 `json:"date"`
	Started int64 `json:"started"`
	Stopped int64 `json:"stopped"`

	UserID       *int   `json:"user_id"`
	User         string `json:"user"`
	FriendlyName string `json:"friendly_name"`
	Email        string `json:"email"`

	MediaType        string  `json:"media_type"`
	Title            string  `json:"title"`
	ParentTitle      *string `json:"parent_title"`      // season title, null for movies
	GrandparentTitle *string `json:"grandparent_title"` // show title, null for movies

	// Rating keys are numeric in Tautulli and nullable.
	RatingKey            *int `json:"rating_key"`
	ParentRatingKey      *int `json:"parent_rating_key"`
	GrandparentRatingKey *int `json:"grandparent_rating_key"`
	MediaIndex           *int `json:"media_index"`        // episode number
	ParentMediaIndex     *int `json:"parent_media_index"` // season number

	Year *int `json:"year"`

	Duration        *int `json:"duration"` // seconds watched
	PercentComplete *int `json:"percent_complete"`

	Platform string `json:"platform"`
	Player   string `json:"player"`
	Product  string `json:"product"`
	Device   string `json:"device"`

	TranscodeDecision   string `json:"transcode_decision"`
	VideoFullResolution string `json:"video_full_resolution"`

	// Cast and crew arrive comma-separated.
	Directors string `json:"directors"`
	Actors    string `json:"actors"`
	Genres    string `json:"genres"`
}

// Users is the response of the get_users command.
type Users struct {
	Response UsersResponse `json:"response"`
}

type UsersResponse struct {
	Result  string  `json:"result"`
	Message *string `json:"message,omitempty"`
	Data    []User  `json:"data"`
}

// User is one server account from get_users.
type User struct {
	UserID       int    `json:"user_id"`
	Username     string `json:"username"`
	FriendlyName string `json:"friendly_name"`
	Email        string `json:"email"`
	IsActive     int    `json:"is_active"`
	KeepHistory  int    `json:"keep_history"`
}

// Libraries is the response of the get_libraries command.
type Libraries struct {
	Response LibrariesResponse `json:"response"`
}

type LibrariesResponse struct {
	Result  string    `json:"result"`
	Message *string   `json:"message,omitempty"`
	Data    []Library `json:"data"`
}

// Library is one library section from get_libraries. Count is the number of
// top-level items (movies for movie sections, shows for show sections).
type Library struct {
	SectionID   string `json:"section_id"`
	SectionName string `json:"section_name"`
	SectionType string `json:"section_type"` // movie, show, artist, photo
	Count       string `json:"count"`        // Tautulli returns counts as strings
}
