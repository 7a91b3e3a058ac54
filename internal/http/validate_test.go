package http

import (
	"encoding/json"
	"testing"
)

func TestFlexString(t *testing.T) {
	tests := []struct {
		in   string
		want string
		err  bool
	}{
		{`"123"`, "123", false},
		{`15551234567`, "15551234567", false},
		{`null`, "", false},
		{`true`, "", true},
		{`{}`, "", true},
	}
	for _, tt := range tests {
		var f flexString
		err := json.Unmarshal([]byte(tt.in), &f)
		if (err != nil) != tt.err {
			t.Errorf("%s: err = %v", tt.in, err)
			continue
		}
		if !tt.err && string(f) != tt.want {
			t.Errorf("%s: got %q, want %q", tt.in, f, tt.want)
		}
	}
}

func TestParseInlineMedia(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantNil  bool
		wantData string
		wantName string
		wantErr  bool
	}{
		{name: "absent", raw: ``, wantNil: true},
		{name: "missing mimetype", raw: `{"data":"aGk="}`, wantNil: true},
		{name: "missing data", raw: `{"mimetype":"text/plain"}`, wantNil: true},
		{name: "base64", raw: `{"mimetype":"text/plain","data":"aGk=","filename":"a.txt"}`, wantData: "hi", wantName: "a.txt"},
		{name: "unpadded base64", raw: `{"mimetype":"text/plain","data":"aGk"}`, wantData: "hi", wantName: "file"},
		{name: "data url", raw: `{"mimetype":"text/plain","data":"data:text/plain;base64,aGk="}`, wantData: "hi", wantName: "file"},
		{name: "json string", raw: `"{\"mimetype\":\"text/plain\",\"data\":\"aGk=\"}"`, wantData: "hi", wantName: "file"},
		{name: "unparseable string", raw: `"not json"`, wantNil: true},
		{name: "bad base64", raw: `{"mimetype":"text/plain","data":"!!!"}`, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m, err := parseInlineMedia(json.RawMessage(tt.raw))
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v", err)
			}
			if tt.wantErr {
				return
			}
			if tt.wantNil {
				if m != nil {
					t.Errorf("got %+v, want nil", m)
				}
				return
			}
			if m == nil {
				t.Fatal("got nil media")
			}
			if string(m.Data) != tt.wantData || m.Filename != tt.wantName {
				t.Errorf("got data=%q name=%q", m.Data, m.Filename)
			}
		})
	}
}
