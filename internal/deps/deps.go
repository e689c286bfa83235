package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Requirement defines an external binary segcheck relies on.
type Requirement struct {
	Name        string
	Command     string
	Description string
	Optional    bool
}

// Status reports the availability of a dependency.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// CheckBinaries evaluates the provided requirements and reports availability.
func CheckBinaries(requirements []Requirement) []Status {
	results := make([]Status, 0, len(requirements))
	for _, req := range requirements {
		results = append(results, check(req))
	}
	return results
}

func check(req Requirement) Status {
	cmd := strings.TrimSpace(req.Command)
	status := Status{
		Name:        req.Name,
		Command:     cmd,
		Description: strings.TrimSpace(req.Description),
		Optional:    req.Optional,
	}
	if cmd == "" {
		status.Detail = "command not configured"
		return status
	}
	resolved, err := exec.LookPath(cmd)
	if err != nil {
		status.Detail = fmt.Sprintf("binary %q not found", cmd)
		return status
	}
	status.Command = resolved
	status.Available = true
	return status
}

// CheckFFmpeg reports whether the configured ffmpeg binary resolves. The
// requirement is optional unless the ffmpeg extractor is selected.
func CheckFFmpeg(binary string, required bool) Status {
	if strings.TrimSpace(binary) == "" {
		binary = "ffmpeg"
	}
	return check(Requirement{
		Name:        "FFmpeg",
		Command:     binary,
		Description: "Cuts audio chunks with surrounding context",
		Optional:    !required,
	})
}
