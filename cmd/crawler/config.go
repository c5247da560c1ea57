package main

import (
	"fmt"
	"strings"

	"opdsgrab/internal/types"
)

// parseLanguages reads comma separated code:Name pairs, like "en:English,fr:French".
func parseLanguages(s string) ([]types.Language, error) {
	var ret []types.Language
	seen := make(map[string]struct{})

	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}

		code, name, ok := strings.Cut(pair, ":")
		code = strings.TrimSpace(code)
		name = strings.TrimSpace(name)
		if !ok || code == "" || name == "" {
			return nil, fmt.Errorf("expected code:Name, got %q", pair)
		}

		if strings.ContainsAny(code, "/ ") {
			return nil, fmt.Errorf("invalid language code %q", code)
		}

		if _, ok := seen[code]; ok {
			return nil, fmt.Errorf("duplicate language code %q", code)
		}
		seen[code] = struct{}{}

		ret = append(ret, types.Language{Code: code, Name: name})
	}

	if len(ret) == 0 {
		return nil, fmt.Errorf("no languages in %q", s)
	}

	return ret, nil
}
