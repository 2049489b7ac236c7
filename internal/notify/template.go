package notify

import "strings"

// RenderTemplate fills the {placeholder} tokens admins use in the settings
// message templates. Unknown tokens pass through untouched.
func RenderTemplate(template string, vars map[string]string) string {
	pairs := make([]string, 0, len(vars)*2)
	for k, v := range vars {
		pairs = append(pairs, "{"+k+"}", v)
	}
	return strings.NewReplacer(pairs...).Replace(template)
}
