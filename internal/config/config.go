// Package config turns viper settings (file, env, flags) into a runner.Config.
package config

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"

	"stageq/internal/runner"
)

// Keys shared by the config file, STAGEQ_* environment variables and flags.
const (
	KeyURL            = "url"
	KeyPayload        = "payload"
	KeyHeaders        = "headers"
	KeyHeaderFlags    = "header"
	KeyStages         = "stages"
	KeyStageFlags     = "stage"
	KeyStartUsers     = "start_users"
	KeySleep          = "sleep"
	KeyRequestTimeout = "request_timeout"
	KeyGracefulStop   = "graceful_stop"
	KeyTick           = "tick"
	KeyChecks         = "checks"
	KeyOut            = "out"
	KeyInsecure       = "insecure"
)

// New returns a viper instance reading STAGEQ_* variables with defaults set.
func New() *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix("stageq")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	return v
}

// Alternate spellings accepted in config files. Viper lowercases keys, so
// sleepSeconds arrives as sleepseconds.
var aliases = map[string][]string{
	KeyPayload:        {"payloadtemplate"},
	KeySleep:          {"sleepseconds", "sleep_seconds"},
	KeyRequestTimeout: {"requesttimeoutseconds", "request_timeout_seconds"},
}

// SetDefaults registers the defaults that have no alias. Sleep (30s) and
// request timeout (60s) are filled by Load once neither spelling is set.
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyTick, runner.DefaultTickInterval)
	v.SetDefault(KeyGracefulStop, time.Duration(0))
	v.SetDefault(KeyStartUsers, 0)
}

// Load reads every key into a runner.Config. Stage and header flags take
// precedence over their file counterparts when given. The result is not
// validated beyond parsing; runner.NewRunner does that.
func Load(v *viper.Viper) (runner.Config, error) {
	cfg := runner.Config{
		URL:        strings.TrimSpace(v.GetString(KeyURL)),
		StartUsers: v.GetInt(KeyStartUsers),
		OutPrefix:  v.GetString(KeyOut),
		Insecure:   v.GetBool(KeyInsecure),
	}

	var err error
	if cfg.Payload, err = payload(v); err != nil {
		return cfg, err
	}
	if cfg.Sleep, err = aliasedDuration(v, KeySleep, runner.DefaultSleep); err != nil {
		return cfg, err
	}
	if cfg.RequestTimeout, err = aliasedDuration(v, KeyRequestTimeout, runner.DefaultRequestTimeout); err != nil {
		return cfg, err
	}
	if cfg.GracefulStop, err = duration(v, KeyGracefulStop); err != nil {
		return cfg, err
	}
	if cfg.TickInterval, err = duration(v, KeyTick); err != nil {
		return cfg, err
	}

	if flags := v.GetStringSlice(KeyStageFlags); len(flags) > 0 {
		if cfg.Stages, err = ParseStages(flags); err != nil {
			return cfg, err
		}
	} else if v.IsSet(KeyStages) {
		if cfg.Stages, err = decodeStages(v.Get(KeyStages)); err != nil {
			return cfg, err
		}
	}

	cfg.Headers = v.GetStringMapString(KeyHeaders)
	if flags := headerFlags(v); len(flags) > 0 {
		parsed, err := ParseHeaders(flags)
		if err != nil {
			return cfg, err
		}
		if cfg.Headers == nil {
			cfg.Headers = make(map[string]string)
		}
		for k, val := range parsed {
			cfg.Headers[k] = val
		}
	}

	if v.IsSet(KeyChecks) {
		if err := v.UnmarshalKey(KeyChecks, &cfg.Checks); err != nil {
			return cfg, &runner.ConfigError{Field: KeyChecks, Reason: "cannot decode check list", Err: err}
		}
	}

	return cfg, nil
}

// setKey returns the first of key and its aliases that is explicitly set.
func setKey(v *viper.Viper, key string) (string, bool) {
	for _, k := range append([]string{key}, aliases[key]...) {
		if v.IsSet(k) {
			return k, true
		}
	}
	return "", false
}

func aliasedDuration(v *viper.Viper, key string, def time.Duration) (time.Duration, error) {
	k, ok := setKey(v, key)
	if !ok {
		return def, nil
	}
	d, err := duration(v, k)
	if err != nil {
		if ce, ok := err.(*runner.ConfigError); ok {
			ce.Field = key
		}
		return 0, err
	}
	return d, nil
}

// payload must be JSON text. A YAML mapping is refused: viper lowercases
// its keys, which would change the body.
func payload(v *viper.Viper) (string, error) {
	k, ok := setKey(v, KeyPayload)
	if !ok {
		return "", nil
	}
	switch t := v.Get(k).(type) {
	case nil:
		return "", nil
	case string:
		return t, nil
	default:
		return "", &runner.ConfigError{Field: KeyPayload, Reason: fmt.Sprintf("must be a JSON string, got %T", t)}
	}
}

// headerFlags reads --header values. A single STAGEQ_HEADER variable is one
// header, not a whitespace-separated list.
func headerFlags(v *viper.Viper) []string {
	if s, ok := v.Get(KeyHeaderFlags).(string); ok {
		if strings.TrimSpace(s) == "" {
			return nil
		}
		return []string{s}
	}
	return v.GetStringSlice(KeyHeaderFlags)
}

// duration accepts Go duration strings ("30s") or plain numbers of seconds.
func duration(v *viper.Viper, key string) (time.Duration, error) {
	raw := v.Get(key)
	switch t := raw.(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return t, nil
	case int:
		return time.Duration(t) * time.Second, nil
	case int64:
		return time.Duration(t) * time.Second, nil
	case float64:
		return time.Duration(t * float64(time.Second)), nil
	case string:
		return parseDuration(key, t)
	default:
		return parseDuration(key, fmt.Sprint(t))
	}
}

func parseDuration(field, s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	if secs, err := strconv.ParseFloat(s, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, &runner.ConfigError{Field: field, Reason: fmt.Sprintf("bad duration %q", s), Err: err}
	}
	return d, nil
}

// decodeStages reads the stage list of a config file. Each entry is a map
// with duration (or duration_seconds, durationSeconds) and target (or
// target_users, targetUsers).
func decodeStages(raw interface{}) ([]runner.Stage, error) {
	list, ok := raw.([]interface{})
	if !ok {
		return nil, &runner.ConfigError{Field: KeyStages, Reason: fmt.Sprintf("expected a list, got %T", raw)}
	}

	stages := make([]runner.Stage, 0, len(list))
	for i, item := range list {
		m, ok := item.(map[string]interface{})
		if !ok {
			return nil, &runner.ConfigError{Field: KeyStages, Reason: fmt.Sprintf("stage %d is not a map", i+1)}
		}
		var st runner.Stage

		d := first(m, "duration", "duration_seconds", "durationSeconds")
		if d == nil {
			return nil, &runner.ConfigError{Field: KeyStages, Reason: fmt.Sprintf("stage %d has no duration", i+1)}
		}
		dur, err := parseDuration(KeyStages, fmt.Sprint(d))
		if err != nil {
			return nil, err
		}
		st.Duration = dur

		tgt := first(m, "target", "target_users", "targetUsers")
		if tgt == nil {
			return nil, &runner.ConfigError{Field: KeyStages, Reason: fmt.Sprintf("stage %d has no target", i+1)}
		}
		n, err := strconv.Atoi(strings.TrimSpace(fmt.Sprint(tgt)))
		if err != nil {
			return nil, &runner.ConfigError{Field: KeyStages, Reason: fmt.Sprintf("stage %d has a non-integer target", i+1), Err: err}
		}
		st.Target = n

		stages = append(stages, st)
	}
	return stages, nil
}

// first looks keys up case-insensitively, in order.
func first(m map[string]interface{}, keys ...string) interface{} {
	for _, k := range keys {
		for mk, v := range m {
			if strings.EqualFold(mk, k) {
				return v
			}
		}
	}
	return nil
}

// ParseStages reads k6-style "duration:target" pairs, e.g. "30s:10".
func ParseStages(specs []string) ([]runner.Stage, error) {
	stages := make([]runner.Stage, 0, len(specs))
	for _, spec := range specs {
		parts := strings.SplitN(spec, ":", 2)
		if len(parts) != 2 {
			return nil, &runner.ConfigError{Field: KeyStages, Reason: fmt.Sprintf("stage %q is not duration:target", spec)}
		}
		d, err := parseDuration(KeyStages, parts[0])
		if err != nil {
			return nil, err
		}
		target, err := strconv.Atoi(strings.TrimSpace(parts[1]))
		if err != nil {
			return nil, &runner.ConfigError{Field: KeyStages, Reason: fmt.Sprintf("stage %q has a non-integer target", spec), Err: err}
		}
		stages = append(stages, runner.Stage{Duration: d, Target: target})
	}
	return stages, nil
}

// ParseHeaders reads "Key: Value" pairs as given to --header.
func ParseHeaders(specs []string) (map[string]string, error) {
	out := make(map[string]string, len(specs))
	for _, h := range specs {
		parts := strings.SplitN(h, ":", 2)
		if len(parts) != 2 || strings.TrimSpace(parts[0]) == "" {
			return nil, &runner.ConfigError{Field: KeyHeaders, Reason: fmt.Sprintf("header %q is not \"Key: Value\"", h)}
		}
		out[strings.TrimSpace(parts[0])] = strings.TrimSpace(parts[1])
	}
	return out, nil
}
