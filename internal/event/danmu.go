package event

import (
	"encoding/json"
	"fmt"
)

// Danmu is a scrolling chat message. Unlike every other notification kind
// it is encoded as a heterogeneous positional array under "info":
//
//	[0] display metadata  ([4] = send timestamp, unix ms)
//	[1] message text
//	[2] sender            [uid, uname, ...]
//	[3] fan medal         [level, name, anchorName, ..., anchorUID last]
//	[7] guard level
//
// Only indices 0–2 are required; everything after defaults to zero values.
type Danmu struct {
	UID   uint64
	Uname string
	Text  string

	GuardLevel uint32

	MedalLevel     uint32
	MedalName      string
	MedalOwnerUID  uint64
	MedalOwnerName string

	SentAt int64 // unix milliseconds, 0 when absent
}

func decodeDanmu(env envelope) (Payload, error) {
	var info []any
	if err := json.Unmarshal(env.Info, &info); err != nil {
		return nil, fmt.Errorf("%w: info: %v", ErrBadDanmu, err)
	}
	if len(info) < 3 {
		return nil, fmt.Errorf("%w: info has %d elements, need 3", ErrBadDanmu, len(info))
	}

	text, ok := info[1].(string)
	if !ok {
		return nil, fmt.Errorf("%w: info[1] is not a string", ErrBadDanmu)
	}
	sender, ok := info[2].([]any)
	if !ok {
		return nil, fmt.Errorf("%w: info[2] is not an array", ErrBadDanmu)
	}

	d := Danmu{
		Text:  text,
		UID:   numAt(sender, 0),
		Uname: strAt(sender, 1),
	}

	if meta := arrAt(info, 0); meta != nil {
		d.SentAt = int64(numAt(meta, 4))
	}
	if medal := arrAt(info, 3); len(medal) > 0 {
		d.MedalLevel = uint32(numAt(medal, 0))
		d.MedalName = strAt(medal, 1)
		d.MedalOwnerName = strAt(medal, 2)
		d.MedalOwnerUID = numAt(medal, len(medal)-1)
	}
	d.GuardLevel = uint32(numAt(info, 7))

	return d, nil
}

// numAt returns the number at arr[i], or 0 when the index is absent or not
// numeric.
func numAt(arr []any, i int) uint64 {
	if i < 0 || i >= len(arr) {
		return 0
	}
	n, ok := arr[i].(float64)
	if !ok || n < 0 {
		return 0
	}
	return uint64(n)
}

// strAt returns the string at arr[i], or "" when absent or not a string.
func strAt(arr []any, i int) string {
	if i < 0 || i >= len(arr) {
		return ""
	}
	s, _ := arr[i].(string)
	return s
}

// arrAt returns the array at arr[i], or nil when absent or not an array.
func arrAt(arr []any, i int) []any {
	if i < 0 || i >= len(arr) {
		return nil
	}
	a, _ := arr[i].([]any)
	return a
}
