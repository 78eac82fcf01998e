package commands

import (
	"encoding/json"
	"io"
	"strconv"
	"strings"
	"unicode/utf8"

	"git.home.luguber.info/inful/binlog/pkg/binlog"
)

// entryWriter prints entries as tab-separated text or JSON lines.
type entryWriter struct {
	w    io.Writer
	text bool
	enc  *json.Encoder
}

type jsonEntry struct {
	Timestamp int64  `json:"timestamp"`
	Name      string `json:"name"`
	Value     []int  `json:"value"`
	Text      string `json:"text,omitempty"`
}

func newEntryWriter(w io.Writer, format string, text bool) *entryWriter {
	ew := &entryWriter{w: w, text: text}
	if format == "json" {
		ew.enc = json.NewEncoder(w)
	}
	return ew
}

func (ew *entryWriter) write(e binlog.Entry) error {
	if ew.enc != nil {
		je := jsonEntry{Timestamp: e.Timestamp, Name: e.Name, Value: make([]int, len(e.Value))}
		for i, b := range e.Value {
			je.Value[i] = int(b)
		}
		if ew.text && utf8.Valid(e.Value) {
			je.Text = string(e.Value)
		}
		return ew.enc.Encode(je)
	}
	_, err := io.WriteString(ew.w, strconv.FormatInt(e.Timestamp, 10)+"\t"+e.Name+"\t"+ew.formatValue(e.Value)+"\n")
	return err
}

func (ew *entryWriter) formatValue(v []byte) string {
	if ew.text {
		return strconv.Quote(string(v))
	}
	parts := make([]string, len(v))
	for i, b := range v {
		parts[i] = strconv.Itoa(int(b))
	}
	return strings.Join(parts, " ")
}
