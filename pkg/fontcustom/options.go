package fontcustom

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Options holds the fontcustom settings a user can supply. Known keys are
// typed; anything else goes to Extra and is passed to the tool verbatim.
type Options struct {
	FontName         string            `yaml:"font_name"`
	CSSSelector      string            `yaml:"css_selector"`
	CSSPrefix        string            `yaml:"css_prefix"`
	PreprocessorPath string            `yaml:"preprocessor_path"`
	Templates        []string          `yaml:"templates"`
	Autowidth        bool              `yaml:"autowidth"`
	Debug            bool              `yaml:"debug"`
	Quiet            bool              `yaml:"quiet"`
	Extra            map[string]string `yaml:",inline"`
}

// Keys that are always set to "true" whatever the user asks for: output
// names carry no hash and existing output is overwritten.
var forcedFlags = []string{"no_hash", "force"}

// outputFlag is the key pointing fontcustom at the workspace.
const outputFlag = "output"

// knownOrder fixes the position of well-known flags on the command line.
var knownOrder = []string{
	"no_hash",
	"force",
	"font_name",
	"css_selector",
	"css_prefix",
	"preprocessor_path",
	"templates",
	"autowidth",
	"debug",
	"quiet",
}

// Set assigns key to value, routing known keys to their typed field. It
// fails when a boolean option gets a value strconv.ParseBool rejects.
func (o *Options) Set(key, value string) error {
	key = strings.TrimPrefix(strings.TrimSpace(key), "--")
	switch key {
	case "font_name":
		o.FontName = value
	case "css_selector":
		o.CSSSelector = value
	case "css_prefix":
		o.CSSPrefix = value
	case "preprocessor_path":
		o.PreprocessorPath = value
	case "templates":
		o.Templates = strings.Fields(strings.ReplaceAll(value, ",", " "))
	case "autowidth":
		return setBool(&o.Autowidth, key, value)
	case "debug":
		return setBool(&o.Debug, key, value)
	case "quiet":
		return setBool(&o.Quiet, key, value)
	default:
		if o.Extra == nil {
			o.Extra = make(map[string]string)
		}
		o.Extra[key] = value
	}
	return nil
}

func setBool(dst *bool, key, value string) error {
	b, err := strconv.ParseBool(value)
	if err != nil {
		return fmt.Errorf("invalid value %q for option %s: %w", value, key, err)
	}
	*dst = b
	return nil
}

// known returns the typed options that are set.
func (o Options) known() map[string][]string {
	m := make(map[string][]string)
	if o.FontName != "" {
		m["font_name"] = []string{o.FontName}
	}
	if o.CSSSelector != "" {
		m["css_selector"] = []string{o.CSSSelector}
	}
	if o.CSSPrefix != "" {
		m["css_prefix"] = []string{o.CSSPrefix}
	}
	if o.PreprocessorPath != "" {
		m["preprocessor_path"] = []string{o.PreprocessorPath}
	}
	if len(o.Templates) > 0 {
		m["templates"] = append([]string(nil), o.Templates...)
	}
	if o.Autowidth {
		m["autowidth"] = []string{"true"}
	}
	if o.Debug {
		m["debug"] = []string{"true"}
	}
	if o.Quiet {
		m["quiet"] = []string{"true"}
	}
	return m
}

// Merge resolves the effective flags for one invocation:
// defaults < Extra < typed options < forced flags, with output pointing at dir.
func (o Options) Merge(output string) map[string][]string {
	merged := make(map[string][]string)
	for _, k := range forcedFlags {
		merged[k] = []string{"true"}
	}
	for k, v := range o.Extra {
		k = strings.TrimPrefix(k, "--")
		if k == "" {
			continue
		}
		merged[k] = []string{v}
	}
	for k, v := range o.known() {
		merged[k] = v
	}
	for _, k := range forcedFlags {
		merged[k] = []string{"true"}
	}
	merged[outputFlag] = []string{output}
	return merged
}

// Args serializes merged flags into command-line tokens: each key becomes
// "--key" followed by its values. Known keys come first, then the rest in
// lexical order, and output last.
func Args(merged map[string][]string) []string {
	var args []string
	appendFlag := func(k string) {
		if v, ok := merged[k]; ok {
			args = append(args, "--"+k)
			args = append(args, v...)
		}
	}

	placed := map[string]bool{outputFlag: true}
	for _, k := range knownOrder {
		appendFlag(k)
		placed[k] = true
	}

	var rest []string
	for k := range merged {
		if !placed[k] {
			rest = append(rest, k)
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		appendFlag(k)
	}

	appendFlag(outputFlag)
	return args
}
