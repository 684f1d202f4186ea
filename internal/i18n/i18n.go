// Package i18n loads YAML translation catalogs and serves them to the command
// tree during sync.
//
// A catalog file looks like:
//
//	locale: de
//	names:
//	  ping: ping
//	  tasks: aufgaben
//	messages:
//	  "Check that the bot is alive": "Prüft, ob der Bot lebt"
//
// names translates command, group and parameter names; messages translates
// descriptions and choice names.
package i18n

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/bwmarrin/discordgo"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/keshon/commandtree/pkg/appcmd"
)

var chatNameRe = regexp.MustCompile(`^[-_\p{L}\p{N}\p{Devanagari}\p{Thai}]{1,32}$`)

type catalogFile struct {
	Locale   string            `yaml:"locale"`
	Names    map[string]string `yaml:"names"`
	Messages map[string]string `yaml:"messages"`
}

// Catalog holds the strings of one locale.
type Catalog struct {
	Tag      language.Tag
	Names    map[string]string
	Messages map[string]string
}

// Translator implements appcmd.Translator over a set of catalogs.
type Translator struct {
	catalogs []*Catalog
	matcher  language.Matcher
}

var _ appcmd.Translator = (*Translator)(nil)

// LoadDir loads every *.yaml and *.yml file in dir.
func LoadDir(dir string) (*Translator, error) {
	return LoadFS(os.DirFS(dir))
}

// LoadFS loads every *.yaml and *.yml file at the root of fsys.
func LoadFS(fsys fs.FS) (*Translator, error) {
	var paths []string
	for _, pattern := range []string{"*.yaml", "*.yml"} {
		matches, err := fs.Glob(fsys, pattern)
		if err != nil {
			return nil, fmt.Errorf("glob locale catalogs: %w", err)
		}
		paths = append(paths, matches...)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no catalog files found")
	}
	slices.Sort(paths)

	t := &Translator{}
	for _, path := range paths {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return nil, fmt.Errorf("read catalog %s: %w", path, err)
		}
		c, err := parseCatalog(data)
		if err != nil {
			return nil, fmt.Errorf("parse catalog %s: %w", path, err)
		}
		if slices.ContainsFunc(t.catalogs, func(o *Catalog) bool { return o.Tag == c.Tag }) {
			return nil, fmt.Errorf("catalog %s: locale %s is defined twice", path, c.Tag)
		}
		t.catalogs = append(t.catalogs, c)
	}
	tags := make([]language.Tag, len(t.catalogs))
	for i, c := range t.catalogs {
		tags[i] = c.Tag
	}
	t.matcher = language.NewMatcher(tags)
	return t, nil
}

func parseCatalog(data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, err
	}
	locale := strings.TrimSpace(file.Locale)
	if locale == "" {
		return nil, fmt.Errorf("locale is required")
	}
	tag, err := language.Parse(locale)
	if err != nil {
		return nil, fmt.Errorf("locale %q: %w", locale, err)
	}
	c := &Catalog{Tag: tag, Names: file.Names, Messages: file.Messages}
	if c.Names == nil {
		c.Names = map[string]string{}
	}
	if c.Messages == nil {
		c.Messages = map[string]string{}
	}
	return c, nil
}

// catalogFor returns the catalog that serves locale with at least high
// confidence, or nil.
func (t *Translator) catalogFor(locale discordgo.Locale) *Catalog {
	tag, err := language.Parse(string(locale))
	if err != nil {
		return nil
	}
	_, i, conf := t.matcher.Match(tag)
	if conf < language.High {
		return nil
	}
	return t.catalogs[i]
}

// Locales lists the Discord locales that some catalog can serve, for use
// with appcmd.WithLocales.
func (t *Translator) Locales() []discordgo.Locale {
	var out []discordgo.Locale
	for l := range discordgo.Locales {
		if l != "" && t.catalogFor(l) != nil {
			out = append(out, l)
		}
	}
	slices.Sort(out)
	return out
}

// Translate looks s up in the catalog matching locale. Chat input names are
// lowercased and must still be valid command names.
func (t *Translator) Translate(_ context.Context, s appcmd.LocaleString, locale discordgo.Locale, tc appcmd.TranslationContext) (string, bool, error) {
	c := t.catalogFor(locale)
	if c == nil {
		return "", false, nil
	}
	switch tc.Location {
	case appcmd.LocationCommandName, appcmd.LocationGroupName, appcmd.LocationParameterName:
		name, ok := c.Names[s.Message]
		if !ok || name == "" {
			return "", false, nil
		}
		if cmd, isCmd := tc.Data.(*discordgo.ApplicationCommand); isCmd && cmd.Type != discordgo.ChatApplicationCommand {
			return name, true, nil
		}
		name = strings.ToLower(name)
		if !chatNameRe.MatchString(name) {
			return "", false, fmt.Errorf("translated name %q is not a valid command name", name)
		}
		return name, true, nil
	}
	msg, ok := c.Messages[s.Message]
	if !ok || msg == "" {
		return "", false, nil
	}
	if len([]rune(msg)) > appcmd.MaxDescriptionLength {
		return "", false, fmt.Errorf("translation of %q exceeds %d characters", s.Message, appcmd.MaxDescriptionLength)
	}
	return msg, true, nil
}
