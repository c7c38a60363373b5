package failure

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// Rule maps a predicate over an error message to a kind. Messages raised by
// extraction strategies are matched here, so their wording is part of the
// contract.
type Rule struct {
	Name  string
	Kind  Kind
	Match func(msg string) bool
}

// Contains matches when the lowercased message contains any of needles.
func Contains(name string, kind Kind, needles ...string) Rule {
	lowered := make([]string, 0, len(needles))
	for _, needle := range needles {
		if n := strings.ToLower(strings.TrimSpace(needle)); n != "" {
			lowered = append(lowered, n)
		}
	}
	return Rule{
		Name: name,
		Kind: kind,
		Match: func(msg string) bool {
			msg = strings.ToLower(msg)
			for _, needle := range lowered {
				if strings.Contains(msg, needle) {
					return true
				}
			}
			return false
		},
	}
}

// Pattern matches when re finds the message.
func Pattern(name string, kind Kind, re *regexp.Regexp) Rule {
	return Rule{Name: name, Kind: kind, Match: re.MatchString}
}

var (
	transientStatusRe = regexp.MustCompile(`(?i)\b(?:status|http|code)[\s:=]*(?:408|429|5\d\d)\b`)
	clientStatusRe    = regexp.MustCompile(`(?i)\b(?:status|http|code)[\s:=]*4\d\d\b`)
)

// Content signatures come first: a message naming unavailable content is
// permanent even when it also mentions a timeout or a retryable status.
var defaultRules = []Rule{
	Contains("content_unavailable", KindPermanent,
		"private video", "video is private", "account is private", "video unavailable", "content unavailable",
		"is unavailable", "has been removed", "no longer available"),
	Contains("insufficient_text", KindPermanent, "insufficient text", "insufficient content", "too short"),
	Contains("no_transcript", KindPermanent,
		"no transcript", "transcripts disabled", "transcript is disabled", "no spoken content"),
	Contains("access_blocked", KindPermanent,
		"blocked", "captcha", "access denied", "login required", "sign in to confirm"),
	Contains("precondition", KindPermanent, "precondition failed", "missing extracted text", "missing classification"),
	Contains("invalid_url", KindPermanent, "invalid url", "unsupported url", "could not parse video id"),
	Contains("throttled", KindTransient,
		"rate limit", "too many requests", "temporarily unavailable", "service unavailable", "timeout", "timed out"),
	Pattern("retryable_status", KindTransient, transientStatusRe),
	Pattern("client_status", KindPermanent, clientStatusRe),
}

// DefaultRules returns a copy of the built-in table in evaluation order.
func DefaultRules() []Rule {
	out := make([]Rule, len(defaultRules))
	copy(out, defaultRules)
	return out
}

type ruleFile struct {
	Rules []struct {
		Name     string   `yaml:"name"`
		Kind     string   `yaml:"kind"`
		Contains []string `yaml:"contains"`
		Pattern  string   `yaml:"pattern"`
	} `yaml:"rules"`
}

// LoadRules reads additional rules from a YAML file of the form
//
//	rules:
//	  - name: quota
//	    kind: transient
//	    contains: ["quota exceeded"]
//	  - name: geo
//	    kind: permanent
//	    pattern: "(?i)not available in your country"
func LoadRules(path string) ([]Rule, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read error rules: %w", err)
	}
	var file ruleFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("decode error rules: %w", err)
	}

	out := make([]Rule, 0, len(file.Rules))
	for i, item := range file.Rules {
		kind := Kind(strings.ToLower(strings.TrimSpace(item.Kind)))
		if kind != KindTransient && kind != KindPermanent {
			return nil, fmt.Errorf("error rule %d: unknown kind %q", i, item.Kind)
		}
		name := item.Name
		if name == "" {
			name = fmt.Sprintf("rule_%d", i)
		}
		switch {
		case item.Pattern != "":
			re, err := regexp.Compile(item.Pattern)
			if err != nil {
				return nil, fmt.Errorf("error rule %q: %w", name, err)
			}
			out = append(out, Pattern(name, kind, re))
		case len(item.Contains) > 0:
			out = append(out, Contains(name, kind, item.Contains...))
		default:
			return nil, fmt.Errorf("error rule %q: needs contains or pattern", name)
		}
	}
	return out, nil
}
