package appcmd

import "github.com/bwmarrin/discordgo"

// Namespace holds the converted arguments of one invocation keyed by
// parameter name. Every declared parameter has an entry; absent optional
// parameters hold their default.
type Namespace map[string]any

// Has reports whether name is present with a non-nil value.
func (ns Namespace) Has(name string) bool {
	v, ok := ns[name]
	return ok && v != nil
}

// Value returns the raw converted value.
func (ns Namespace) Value(name string) any { return ns[name] }

func (ns Namespace) String(name string) string {
	s, _ := ns[name].(string)
	return s
}

func (ns Namespace) Int(name string) int64 {
	i, _ := ns[name].(int64)
	return i
}

func (ns Namespace) Float(name string) float64 {
	switch v := ns[name].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}

func (ns Namespace) Bool(name string) bool {
	b, _ := ns[name].(bool)
	return b
}

// User returns the user for user, member and mentionable parameters.
func (ns Namespace) User(name string) *discordgo.User {
	switch v := ns[name].(type) {
	case *discordgo.User:
		return v
	case *discordgo.Member:
		return v.User
	}
	return nil
}

func (ns Namespace) Member(name string) *discordgo.Member {
	m, _ := ns[name].(*discordgo.Member)
	return m
}

func (ns Namespace) Role(name string) *discordgo.Role {
	r, _ := ns[name].(*discordgo.Role)
	return r
}

func (ns Namespace) Channel(name string) *discordgo.Channel {
	c, _ := ns[name].(*discordgo.Channel)
	return c
}

func (ns Namespace) Attachment(name string) *discordgo.MessageAttachment {
	a, _ := ns[name].(*discordgo.MessageAttachment)
	return a
}

// Choice returns the matched choice of a ChoiceOf parameter.
func (ns Namespace) Choice(name string) (Choice, bool) {
	c, ok := ns[name].(Choice)
	return c, ok
}

// Enum returns the matched member of an Enum parameter.
func (ns Namespace) Enum(name string) (EnumMember, bool) {
	m, ok := ns[name].(EnumMember)
	return m, ok
}

// ID returns the snowflake of any entity parameter, including unresolved
// Object references.
func (ns Namespace) ID(name string) string {
	switch v := ns[name].(type) {
	case Object:
		return v.ID
	case *discordgo.User:
		return v.ID
	case *discordgo.Member:
		if v.User != nil {
			return v.User.ID
		}
	case *discordgo.Role:
		return v.ID
	case *discordgo.Channel:
		return v.ID
	case *discordgo.MessageAttachment:
		return v.ID
	}
	return ""
}
