package pulse

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"gopulse/pkg/device"
	"gopulse/pkg/timing"
)

// programMeta is program.json inside a checkpoint archive.
type programMeta struct {
	Device     string    `json:"device"`
	Rate       string    `json:"rate"`
	Generation uint64    `json:"generation"`
	Saved      time.Time `json:"saved"`
}

// pulseRecord is the JSON form of one Pulse.
type pulseRecord struct {
	Name            string   `json:"name"`
	Channel         int      `json:"channel"`
	Start           string   `json:"start"`
	Length          string   `json:"length"`
	DeltaStart      string   `json:"delta_start"`
	LengthIncrement string   `json:"length_increment"`
	Phases          []string `json:"phases,omitempty"`
	Cursor          int      `json:"cursor"`
}

func toRecords(ps []Pulse) []pulseRecord {
	out := make([]pulseRecord, len(ps))
	for i, p := range ps {
		out[i] = pulseRecord{
			Name:            p.Name,
			Channel:         p.Channel,
			Start:           timing.FormatDuration(p.Start),
			Length:          timing.FormatDuration(p.Length),
			DeltaStart:      timing.FormatDuration(p.DeltaStart),
			LengthIncrement: timing.FormatDuration(p.LengthIncrement),
			Phases:          p.Phases,
			Cursor:          p.Cursor,
		}
	}
	return out
}

func fromRecords(recs []pulseRecord, prof device.Profile) ([]Pulse, error) {
	out := make([]Pulse, len(recs))
	for i, r := range recs {
		if r.Channel < 0 || r.Channel >= prof.Channels() {
			return nil, fmt.Errorf("pulse %q: %w", r.Name, &device.UnknownChannelError{Name: prof.ChannelName(r.Channel)})
		}
		if r.Cursor < 0 || (len(r.Phases) == 0 && r.Cursor != 0) || (len(r.Phases) > 0 && r.Cursor >= len(r.Phases)) {
			return nil, fmt.Errorf("pulse %q: phase cursor %d outside cycle of %d", r.Name, r.Cursor, len(r.Phases))
		}
		p := Pulse{Name: r.Name, Channel: r.Channel, Phases: r.Phases, Cursor: r.Cursor}
		for _, f := range []struct {
			text string
			dst  *time.Duration
		}{
			{r.Start, &p.Start},
			{r.Length, &p.Length},
			{r.DeltaStart, &p.DeltaStart},
			{r.LengthIncrement, &p.LengthIncrement},
		} {
			d, err := timing.ParseDuration(f.text)
			if err != nil {
				return nil, fmt.Errorf("pulse %q: %w", r.Name, err)
			}
			*f.dst = d
		}
		out[i] = p
	}
	return out, nil
}

// CheckpointToBytes archives both generations and the repetition rate so an
// interrupted scan can resume with its reset target intact.
func (pr *Program) CheckpointToBytes() ([]byte, error) {
	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)

	meta := programMeta{
		Device:     pr.profile.Name(),
		Rate:       pr.rate,
		Generation: pr.generation,
		Saved:      time.Now().UTC(),
	}
	entries := []struct {
		name string
		v    any
	}{
		{"program.json", meta},
		{"current.json", toRecords(pr.current)},
		{"snapshot.json", toRecords(pr.snapshot)},
	}
	for _, e := range entries {
		data, err := json.MarshalIndent(e.v, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", e.name, err)
		}
		if err := writeZipEntry(zw, e.name, data); err != nil {
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close zip: %w", err)
	}
	return buf.Bytes(), nil
}

// RestoreFromBytes rebuilds a program from a CheckpointToBytes archive.
func RestoreFromBytes(data []byte, prof device.Profile) (*Program, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("open zip: %w", err)
	}
	fileMap := make(map[string]*zip.File, len(r.File))
	for _, f := range r.File {
		fileMap[f.Name] = f
	}

	var meta programMeta
	if err := readJSONEntry(fileMap, "program.json", &meta); err != nil {
		return nil, err
	}
	if meta.Device != prof.Name() {
		return nil, fmt.Errorf("checkpoint was taken on %q, not %q", meta.Device, prof.Name())
	}
	var cur, snap []pulseRecord
	if err := readJSONEntry(fileMap, "current.json", &cur); err != nil {
		return nil, err
	}
	if err := readJSONEntry(fileMap, "snapshot.json", &snap); err != nil {
		return nil, err
	}
	if len(cur) != len(snap) {
		return nil, fmt.Errorf("checkpoint holds %d current pulses but %d snapshot pulses", len(cur), len(snap))
	}

	pr := NewProgram(prof)
	if err := pr.SetRepetitionRate(meta.Rate); err != nil {
		return nil, err
	}
	if pr.current, err = fromRecords(cur, prof); err != nil {
		return nil, err
	}
	if pr.snapshot, err = fromRecords(snap, prof); err != nil {
		return nil, err
	}
	for i, p := range pr.current {
		if p.Name != pr.snapshot[i].Name {
			return nil, fmt.Errorf("checkpoint pulse %d is %q in current but %q in snapshot", i, p.Name, pr.snapshot[i].Name)
		}
		if _, dup := pr.index[p.Name]; dup {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateName, p.Name)
		}
		if err := pr.checkBounds(p); err != nil {
			return nil, err
		}
		if err := pr.checkBounds(pr.snapshot[i]); err != nil {
			return nil, err
		}
		pr.index[p.Name] = i
	}
	pr.generation = meta.Generation
	return pr, nil
}

// CheckpointToFile writes the checkpoint archive to path.
func (pr *Program) CheckpointToFile(path string) error {
	data, err := pr.CheckpointToBytes()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// RestoreFromFile reads a checkpoint archive from path.
func RestoreFromFile(path string, prof device.Profile) (*Program, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return RestoreFromBytes(data, prof)
}

func writeZipEntry(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return fmt.Errorf("create zip entry %q: %w", name, err)
	}
	_, err = w.Write(data)
	return err
}

func readJSONEntry(fileMap map[string]*zip.File, name string, v any) error {
	f, ok := fileMap[name]
	if !ok {
		return fmt.Errorf("zip entry %q not found", name)
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open zip entry %q: %w", name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return fmt.Errorf("read zip entry %q: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("unmarshal %s: %w", name, err)
	}
	return nil
}
