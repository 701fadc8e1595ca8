package synth

import (
	"strings"
)

const fence = "```"

// ExtractCodeBlock returns the body of the first fenced block tagged go or
// golang. When the reply has no tagged block, the first untagged fence is
// used. Blocks tagged with another language are ignored.
func ExtractCodeBlock(reply string) (string, error) {
	lines := strings.Split(strings.ReplaceAll(reply, "\r\n", "\n"), "\n")

	var untagged string
	haveUntagged := false

	for i := 0; i < len(lines); i++ {
		open := strings.TrimSpace(lines[i])
		if !strings.HasPrefix(open, fence) {
			continue
		}
		lang := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(open, fence)))

		end := -1
		for j := i + 1; j < len(lines); j++ {
			if strings.TrimSpace(lines[j]) == fence {
				end = j
				break
			}
		}
		if end == -1 {
			break
		}

		body := strings.TrimSpace(strings.Join(lines[i+1:end], "\n"))
		switch lang {
		case "go", "golang":
			return body, nil
		case "":
			if !haveUntagged {
				untagged, haveUntagged = body, true
			}
		}
		i = end
	}

	if haveUntagged {
		return untagged, nil
	}
	return "", &MalformedResponseError{Reason: "no fenced code block in reply"}
}
