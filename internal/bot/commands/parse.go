package commands

import (
	"strconv"
	"strings"

	"github.com/disgoorg/snowflake/v2"
)

// ParseCommand splits a prefixed message into a lower-cased command name and
// its arguments. It reports false when content is not a command.
func ParseCommand(content, prefix string) (string, []string, bool) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(content), prefix)
	if !ok {
		return "", nil, false
	}

	fields := strings.Fields(rest)
	if len(fields) == 0 {
		return "", nil, false
	}

	return strings.ToLower(fields[0]), fields[1:], true
}

// ParseUserID accepts <@id>, <@!id> or a bare id.
func ParseUserID(arg string) (snowflake.ID, bool) {
	if inner, ok := unwrap(arg, "<@", ">"); ok {
		arg = strings.TrimPrefix(inner, "!")
	}

	return parseID(arg)
}

// ParseRoleID accepts <@&id> or a bare id.
func ParseRoleID(arg string) (snowflake.ID, bool) {
	if inner, ok := unwrap(arg, "<@&", ">"); ok {
		arg = inner
	}

	return parseID(arg)
}

// ParseChannelID accepts <#id> or a bare id.
func ParseChannelID(arg string) (snowflake.ID, bool) {
	if inner, ok := unwrap(arg, "<#", ">"); ok {
		arg = inner
	}

	return parseID(arg)
}

// ParseCount accepts a plain integer.
func ParseCount(arg string) (int, bool) {
	n, err := strconv.Atoi(arg)
	return n, err == nil
}

func unwrap(s, prefix, suffix string) (string, bool) {
	if !strings.HasPrefix(s, prefix) || !strings.HasSuffix(s, suffix) || len(s) < len(prefix)+len(suffix) {
		return "", false
	}

	return s[len(prefix) : len(s)-len(suffix)], true
}

func parseID(s string) (snowflake.ID, bool) {
	id, err := snowflake.Parse(s)
	if err != nil || id == 0 {
		return 0, false
	}

	return id, true
}

func roleMention(id snowflake.ID) string {
	return "<@&" + id.String() + ">"
}

func channelMention(id snowflake.ID) string {
	return "<#" + id.String() + ">"
}

func userMention(id snowflake.ID) string {
	return "<@" + id.String() + ">"
}
