package auth

import "strings"

// NormalizeAvatarBase64 converts an avatar value into the bare base64
// payload the profile-update endpoint expects. Remote http(s) URLs are
// not re-uploadable and collapse to empty; data URIs lose their header.
func NormalizeAvatarBase64(avatar string) string {
	if avatar == "" {
		return ""
	}
	if strings.HasPrefix(avatar, "http") {
		return ""
	}
	if strings.HasPrefix(avatar, "data:") {
		comma := strings.Index(avatar, ",")
		if comma == -1 {
			return ""
		}
		return avatar[comma+1:]
	}
	return avatar
}

// ResolveAvatarSrc turns a stored avatar value into something displayable:
// data URIs and http(s) URLs pass through, bare base64 gets a PNG header.
func ResolveAvatarSrc(avatar string) string {
	if avatar == "" {
		return ""
	}
	if strings.HasPrefix(avatar, "data:") || strings.HasPrefix(avatar, "http") {
		return avatar
	}
	return "data:image/png;base64," + avatar
}
