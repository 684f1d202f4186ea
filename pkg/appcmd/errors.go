package appcmd

import (
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
)

var (
	// ErrTreeExists is returned by NewTree when the client already owns a tree.
	ErrTreeExists = errors.New("appcmd: client already has an associated command tree")

	// ErrMissingApplicationID is returned by remote operations before the
	// application id is known.
	ErrMissingApplicationID = errors.New("appcmd: application id is not set; call Tree.SetApplicationID or wait for the ready event")
)

// ConfigError is raised while declaring or registering commands. It never
// happens at dispatch time.
type ConfigError struct {
	Op   string
	Name string
	Err  error
}

func (e *ConfigError) Error() string {
	if e.Name == "" {
		return fmt.Sprintf("appcmd: %s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("appcmd: %s %q: %v", e.Op, e.Name, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

func configErr(op, name string, format string, args ...any) error {
	return &ConfigError{Op: op, Name: name, Err: fmt.Errorf(format, args...)}
}

// CommandAlreadyRegisteredError reports a name collision inside one scope or group.
type CommandAlreadyRegisteredError struct {
	Name    string
	GuildID string
}

func (e *CommandAlreadyRegisteredError) Error() string {
	if e.GuildID == "" {
		return fmt.Sprintf("appcmd: command %q already registered", e.Name)
	}
	return fmt.Sprintf("appcmd: command %q already registered in guild %s", e.Name, e.GuildID)
}

// CommandLimitReachedError reports that a scope or group is full.
type CommandLimitReachedError struct {
	GuildID string
	Type    discordgo.ApplicationCommandType
	Limit   int
}

func (e *CommandLimitReachedError) Error() string {
	scope := "global"
	if e.GuildID != "" {
		scope = "guild " + e.GuildID
	}
	return fmt.Sprintf("appcmd: maximum number of %s commands exceeded %d in %s", typeLabel(e.Type), e.Limit, scope)
}

// CommandNotFoundError is raised during dispatch when the inbound name does not
// match a registered command. Parents holds the path walked so far.
type CommandNotFoundError struct {
	Name    string
	Parents []string
	Type    discordgo.ApplicationCommandType
}

func (e *CommandNotFoundError) Error() string {
	if len(e.Parents) == 0 {
		return fmt.Sprintf("appcmd: application command %q not found", e.Name)
	}
	return fmt.Sprintf("appcmd: application command %q not found (under %q)", e.Name, strings.Join(e.Parents, " "))
}

// CommandSignatureMismatchError means the local definition disagrees with what
// Discord sent. Syncing usually fixes it.
type CommandSignatureMismatchError struct {
	Command string
	Reason  string
	Err     error
}

func (e *CommandSignatureMismatchError) Error() string {
	msg := fmt.Sprintf("appcmd: signature mismatch for %q: %s", e.Command, e.Reason)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg + " (consider syncing the command tree)"
}

func (e *CommandSignatureMismatchError) Unwrap() error { return e.Err }

// TransformerError wraps a failed conversion of a raw option value.
type TransformerError struct {
	Value       any
	Type        discordgo.ApplicationCommandOptionType
	Transformer Transformer
	Err         error
}

func (e *TransformerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("appcmd: failed to convert %v to %s: %v", e.Value, optionTypeLabel(e.Type), e.Err)
	}
	return fmt.Sprintf("appcmd: failed to convert %v to %s", e.Value, optionTypeLabel(e.Type))
}

func (e *TransformerError) Unwrap() error { return e.Err }

// CheckFailureError is produced when a check returns false.
type CheckFailureError struct {
	Command string
	Err     error
}

func (e *CheckFailureError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("appcmd: check failed for %q: %v", e.Command, e.Err)
	}
	return fmt.Sprintf("appcmd: the check functions for %q failed", e.Command)
}

func (e *CheckFailureError) Unwrap() error { return e.Err }

// CommandInvokeError wraps whatever the handler returned or panicked with.
type CommandInvokeError struct {
	Command string
	Err     error
}

func (e *CommandInvokeError) Error() string {
	return fmt.Sprintf("appcmd: command %q raised an error: %v", e.Command, e.Err)
}

func (e *CommandInvokeError) Unwrap() error { return e.Err }

// InteractionDataError is an internal consistency failure: Discord sent data
// that cannot be interpreted. It is never retried.
type InteractionDataError struct {
	InteractionID string
	Reason        string
}

func (e *InteractionDataError) Error() string {
	return fmt.Sprintf("appcmd: malformed interaction %s: %s", e.InteractionID, e.Reason)
}

// SyncError reports that Discord rejected the bulk upsert. Commands holds the
// payload that was sent so the offending entry can be inspected.
type SyncError struct {
	GuildID    string
	StatusCode int
	Commands   []*discordgo.ApplicationCommand
	Err        error
}

func (e *SyncError) Error() string {
	scope := "global"
	if e.GuildID != "" {
		scope = "guild " + e.GuildID
	}
	return fmt.Sprintf("appcmd: failed to sync %d command(s) to %s (status %d): %v", len(e.Commands), scope, e.StatusCode, e.Err)
}

func (e *SyncError) Unwrap() error { return e.Err }

// TranslationError wraps any failure returned by a Translator.
type TranslationError struct {
	Message string
	Locale  discordgo.Locale
	Context TranslationContext
	Err     error
}

func (e *TranslationError) Error() string {
	return fmt.Sprintf("appcmd: failed to translate %q to %s (%s): %v", e.Message, e.Locale, e.Context.Location, e.Err)
}

func (e *TranslationError) Unwrap() error { return e.Err }

func typeLabel(t discordgo.ApplicationCommandType) string {
	switch t {
	case discordgo.ChatApplicationCommand:
		return "chat input"
	case discordgo.UserApplicationCommand:
		return "user context menu"
	case discordgo.MessageApplicationCommand:
		return "message context menu"
	}
	return fmt.Sprintf("type %d", t)
}

func optionTypeLabel(t discordgo.ApplicationCommandOptionType) string {
	switch t {
	case discordgo.ApplicationCommandOptionSubCommand:
		return "subcommand"
	case discordgo.ApplicationCommandOptionSubCommandGroup:
		return "subcommand group"
	case discordgo.ApplicationCommandOptionString:
		return "string"
	case discordgo.ApplicationCommandOptionInteger:
		return "integer"
	case discordgo.ApplicationCommandOptionBoolean:
		return "boolean"
	case discordgo.ApplicationCommandOptionUser:
		return "user"
	case discordgo.ApplicationCommandOptionChannel:
		return "channel"
	case discordgo.ApplicationCommandOptionRole:
		return "role"
	case discordgo.ApplicationCommandOptionMentionable:
		return "mentionable"
	case discordgo.ApplicationCommandOptionNumber:
		return "number"
	case discordgo.ApplicationCommandOptionAttachment:
		return "attachment"
	}
	return fmt.Sprintf("option type %d", t)
}
