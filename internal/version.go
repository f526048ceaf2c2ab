package internal

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

var (
	// CurrentVersion is overwritten by ldflags during release builds.
	CurrentVersion = "v0.4.0"
	// GitHubAPI is the releases endpoint checked by the version
	// command.
	GitHubAPI = "https://api.github.com/repos/keymenu/keymenu/releases/latest"
)

type githubRelease struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// FetchLatestVersion returns the newest release tag and its URL.
func FetchLatestVersion() (string, string, error) {
	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Get(GitHubAPI)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("release check: %s", resp.Status)
	}
	var rel githubRelease
	if err := json.NewDecoder(resp.Body).Decode(&rel); err != nil {
		return "", "", err
	}
	return rel.TagName, rel.HTMLURL, nil
}

// IsNewer reports whether latest is a higher version than current.
func IsNewer(latest, current string) bool {
	lp := versionParts(latest)
	cp := versionParts(current)
	for i := 0; i < len(lp) && i < len(cp); i++ {
		if lp[i] != cp[i] {
			return lp[i] > cp[i]
		}
	}
	return len(lp) > len(cp)
}

func versionParts(v string) []int {
	v = strings.TrimPrefix(strings.TrimSpace(v), "v")
	fields := strings.Split(v, ".")
	parts := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			break
		}
		parts = append(parts, n)
	}
	return parts
}
