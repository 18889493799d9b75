package apphandler

import (
	"sort"
	"strconv"
	"strings"

	"github.com/teranos/agora/internal/errors"
	"github.com/teranos/agora/internal/model"
)

// Every payload parsed in this file arrives from a client, so it has
// already passed the Remote Handler's sanitization whitelist
// (letters, digits, "_ -.,@<>=;()^*+"). That rules out JSON (braces,
// colons, quotes) for anything inbound — the wire formats below use
// only whitelisted separators, matching the source's own '@'-delimited,
// fixed-header info protocol (agora/server/src/application_handler.cc)
// adapted to a uniform "tag=value" line instead of a fixed-width header.

// parseDescription decodes the block description carried on welcome
// (first client) or info, one field per '@'-separated line:
//
//	knob=name,type,v1;v2;v3
//	feature=name,type,compare
//	metric=name,type,distribution_model,inertia,prediction_plugin
//	monitor=name
func parseDescription(payload string) (model.Description, error) {
	var d model.Description
	if strings.TrimSpace(payload) == "" {
		return d, errors.New("apphandler: empty description payload")
	}

	for _, line := range strings.Split(payload, "@") {
		if line == "" {
			continue
		}
		tag, rest, ok := strings.Cut(line, "=")
		if !ok {
			return model.Description{}, errors.Newf("apphandler: malformed description line %q", line)
		}
		fields := strings.Split(rest, ",")

		switch tag {
		case "knob":
			if len(fields) != 3 {
				return model.Description{}, errors.Newf("apphandler: malformed knob line %q", line)
			}
			values := []string{}
			if fields[2] != "" {
				values = strings.Split(fields[2], ";")
			}
			d.Knobs = append(d.Knobs, model.Knob{Name: fields[0], Type: model.NumericType(fields[1]), Values: values})
		case "feature":
			if len(fields) != 3 {
				return model.Description{}, errors.Newf("apphandler: malformed feature line %q", line)
			}
			compare, err := strconv.ParseBool(fields[2])
			if err != nil {
				return model.Description{}, errors.Wrapf(err, "malformed feature compare flag in %q", line)
			}
			d.Features = append(d.Features, model.Feature{Name: fields[0], Type: model.NumericType(fields[1]), Compare: compare})
		case "metric":
			if len(fields) != 5 {
				return model.Description{}, errors.Newf("apphandler: malformed metric line %q", line)
			}
			distributionModel, err := strconv.ParseBool(fields[2])
			if err != nil {
				return model.Description{}, errors.Wrapf(err, "malformed metric distribution flag in %q", line)
			}
			inertia, err := strconv.ParseFloat(fields[3], 64)
			if err != nil {
				return model.Description{}, errors.Wrapf(err, "malformed metric inertia in %q", line)
			}
			d.Metrics = append(d.Metrics, model.Metric{
				Name: fields[0], Type: model.NumericType(fields[1]),
				DistributionModel: distributionModel, Inertia: inertia, PredictionPlugin: fields[4],
			})
		case "monitor":
			if len(fields) != 1 {
				return model.Description{}, errors.Newf("apphandler: malformed monitor line %q", line)
			}
			d.Monitors = append(d.Monitors, model.Monitor{Name: fields[0]})
		default:
			return model.Description{}, errors.Newf("apphandler: unknown description tag %q", tag)
		}
	}

	return d, nil
}

// encodeDescription is the inverse of parseDescription, used by tests
// (and by any client simulator) to build a wire payload.
func encodeDescription(d model.Description) string {
	var parts []string
	for _, k := range d.Knobs {
		parts = append(parts, "knob="+k.Name+","+string(k.Type)+","+strings.Join(k.Values, ";"))
	}
	for _, f := range d.Features {
		parts = append(parts, "feature="+f.Name+","+string(f.Type)+","+strconv.FormatBool(f.Compare))
	}
	for _, m := range d.Metrics {
		parts = append(parts, "metric="+m.Name+","+string(m.Type)+","+strconv.FormatBool(m.DistributionModel)+","+
			strconv.FormatFloat(m.Inertia, 'g', -1, 64)+","+m.PredictionPlugin)
	}
	for _, m := range d.Monitors {
		parts = append(parts, "monitor="+m.Name)
	}
	return strings.Join(parts, "@")
}

// parseObservation decodes the observation payload of §6:
// "<sec>@<ns>@<features?>@<configuration>@<metrics>". featuresDeclared
// gates whether the features segment is required to be non-empty.
func parseObservation(cid, payload string, featuresDeclared bool) (model.Observation, error) {
	parts := strings.Split(payload, "@")
	if len(parts) != 5 {
		return model.Observation{}, errors.Newf("apphandler: expected 5 '@'-separated observation fields, got %d", len(parts))
	}

	sec, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return model.Observation{}, errors.Wrap(err, "invalid observation timestamp seconds")
	}
	nsec, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return model.Observation{}, errors.Wrap(err, "invalid observation timestamp nanoseconds")
	}

	var features model.FeatureVector
	switch {
	case featuresDeclared && parts[2] == "":
		return model.Observation{}, errors.New("apphandler: features declared but observation carries none")
	case featuresDeclared:
		features = strings.Split(parts[2], ";")
	case parts[2] != "":
		return model.Observation{}, errors.New("apphandler: observation carries features but none are declared")
	}

	return model.Observation{
		ClientID:      cid,
		TimestampSec:  sec,
		TimestampNSec: nsec,
		Features:      features,
		Configuration: wireToConfiguration(parts[3]),
		Metrics:       wireToMetrics(parts[4]),
	}, nil
}

// wireToConfiguration/configurationToWire and wireToMetrics use the
// same sorted "k=v;k2=v2" convention as internal/storage, kept
// as a separate (small) copy here since the two packages parse
// independent wire formats (MQTT payload vs CSV cell) that only happen
// to share a convention.
func wireToConfiguration(s string) model.Configuration {
	cfg := make(model.Configuration)
	if s == "" {
		return cfg
	}
	for _, pair := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(pair, "=")
		if ok {
			cfg[k] = v
		}
	}
	return cfg
}

func configurationToWire(cfg model.Configuration) string {
	keys := make([]string, 0, len(cfg))
	for k := range cfg {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"="+cfg[k])
	}
	return strings.Join(parts, ";")
}

func wireToMetrics(s string) map[string]string {
	out := make(map[string]string)
	if s == "" {
		return out
	}
	for _, pair := range strings.Split(s, ";") {
		k, v, ok := strings.Cut(pair, "=")
		if ok {
			out[k] = v
		}
	}
	return out
}
