package event

import (
	"errors"
	"testing"

	"github.com/yuronglin/bililive-feed/internal/frame"
)

func decodeDanmuBody(t *testing.T, body string) (Danmu, error) {
	t.Helper()
	ev, err := Decode(frame.Frame{Op: frame.OpNotification, Body: []byte(body)})
	if err != nil {
		return Danmu{}, err
	}
	d, ok := ev.(Notification).Payload.(Danmu)
	if !ok {
		t.Fatalf("payload type: got %T, want Danmu", ev.(Notification).Payload)
	}
	return d, nil
}

func TestDecodeDanmuFull(t *testing.T) {
	body := `{"cmd":"DANMU_MSG","info":[
		[0,1,25,16777215,1688888888000,123456,0,"hex",0],
		"晚上好",
		[1008612,"观众甲",0,0,0,10000,1,""],
		[21,"小草","主播乙",544853,6126494,"",0,0,0,0,0,0,7706705],
		[36,0,9868950,">50000",2],
		["title-root",""],
		0,
		3,
		null
	]}`

	d, err := decodeDanmuBody(t, body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if d.Text != "晚上好" {
		t.Errorf("Text = %q", d.Text)
	}
	if d.UID != 1008612 || d.Uname != "观众甲" {
		t.Errorf("sender = %d %q", d.UID, d.Uname)
	}
	if d.GuardLevel != 3 {
		t.Errorf("GuardLevel = %d, want 3", d.GuardLevel)
	}
	if d.MedalLevel != 21 || d.MedalName != "小草" {
		t.Errorf("medal = %d %q", d.MedalLevel, d.MedalName)
	}
	if d.MedalOwnerName != "主播乙" || d.MedalOwnerUID != 7706705 {
		t.Errorf("medal owner = %q %d", d.MedalOwnerName, d.MedalOwnerUID)
	}
	if d.SentAt != 1688888888000 {
		t.Errorf("SentAt = %d", d.SentAt)
	}
}

func TestDecodeDanmuMinimalPrefix(t *testing.T) {
	// Exactly the required three elements: everything optional defaults.
	body := `{"cmd":"DANMU_MSG","info":[[],"hi",[7,"u"]]}`

	d, err := decodeDanmuBody(t, body)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.Text != "hi" || d.UID != 7 || d.Uname != "u" {
		t.Errorf("required fields = %+v", d)
	}
	if d.GuardLevel != 0 || d.MedalLevel != 0 || d.MedalName != "" ||
		d.MedalOwnerUID != 0 || d.MedalOwnerName != "" || d.SentAt != 0 {
		t.Errorf("optional fields should default to zero: %+v", d)
	}
}

func TestDecodeDanmuShortArray(t *testing.T) {
	_, err := decodeDanmuBody(t, `{"cmd":"DANMU_MSG","info":[[],"hi"]}`)
	if !errors.Is(err, ErrBadDanmu) {
		t.Errorf("expected ErrBadDanmu, got %v", err)
	}
}

func TestDecodeDanmuWrongTypes(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"info not array", `{"cmd":"DANMU_MSG","info":{"text":"hi"}}`},
		{"text not string", `{"cmd":"DANMU_MSG","info":[[],42,[7,"u"]]}`},
		{"sender not array", `{"cmd":"DANMU_MSG","info":[[],"hi","u"]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := decodeDanmuBody(t, tt.body)
			if !errors.Is(err, ErrBadDanmu) {
				t.Errorf("expected ErrBadDanmu, got %v", err)
			}
		})
	}
}

func TestDecodeDanmuSenderDefaults(t *testing.T) {
	// A sender array holding only the uid still decodes; uname defaults.
	d, err := decodeDanmuBody(t, `{"cmd":"DANMU_MSG","info":[[],"hey",[42]]}`)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if d.UID != 42 || d.Uname != "" {
		t.Errorf("sender = %d %q", d.UID, d.Uname)
	}
}
