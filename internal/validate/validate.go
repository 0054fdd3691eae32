package validate

import "fmt"

// Text field length limits shared by the API handlers and the /api/limits endpoint.
const (
	MaxTitleLength               = 200
	MaxDescriptionLength         = 2000
	MaxCommentBodyLength         = 1000
	MaxAuthorNameLength          = 100
	MaxPlaylistTitleLength       = 200
	MaxPlaylistDescriptionLength = 2000
	MaxProfileNameLength         = 100
	MaxProfileBioLength          = 500
)

func checkLen(value string, max int, field string) string {
	if len(value) > max {
		return fmt.Sprintf("%s must be %d characters or fewer", field, max)
	}
	return ""
}

func Title(s string) string       { return checkLen(s, MaxTitleLength, "title") }
func Description(s string) string { return checkLen(s, MaxDescriptionLength, "description") }
func CommentBody(s string) string { return checkLen(s, MaxCommentBodyLength, "comment") }
func AuthorName(s string) string  { return checkLen(s, MaxAuthorNameLength, "name") }
func PlaylistTitle(s string) string {
	return checkLen(s, MaxPlaylistTitleLength, "playlist title")
}
func PlaylistDescription(s string) string {
	return checkLen(s, MaxPlaylistDescriptionLength, "playlist description")
}
func ProfileName(s string) string { return checkLen(s, MaxProfileNameLength, "profile name") }
func ProfileBio(s string) string  { return checkLen(s, MaxProfileBioLength, "bio") }

// FieldLimits returns a map of field names to max lengths for the /api/limits endpoint.
func FieldLimits() map[string]int {
	return map[string]int{
		"title":               MaxTitleLength,
		"description":         MaxDescriptionLength,
		"commentBody":         MaxCommentBodyLength,
		"authorName":          MaxAuthorNameLength,
		"playlistTitle":       MaxPlaylistTitleLength,
		"playlistDescription": MaxPlaylistDescriptionLength,
		"profileName":         MaxProfileNameLength,
		"profileBio":          MaxProfileBioLength,
	}
}
