package event

import (
	"encoding/json"
	"fmt"
)

// Payload is the typed content of a Notification, discriminated by the
// wire-level cmd string.
type Payload interface {
	Cmd() string
}

// envelope is the outer shape of every notification body. DANMU_MSG carries
// its content in info (a positional array); everything else uses data.
type envelope struct {
	Cmd  string          `json:"cmd"`
	Data json.RawMessage `json:"data"`
	Info json.RawMessage `json:"info"`

	raw json.RawMessage // full body, for cmds with top-level fields
}

// Medal is a fan-club badge attached to a viewer.
type Medal struct {
	AnchorRoomID uint64 `json:"anchor_roomid"`
	GuardLevel   uint32 `json:"guard_level"`
	Level        uint32 `json:"medal_level"`
	Name         string `json:"medal_name"`
}

// Gift is one gift sent to the room (SEND_GIFT).
type Gift struct {
	GiftID    uint32 `json:"giftId"`
	GiftName  string `json:"giftName"`
	TotalCoin uint64 `json:"total_coin"`
	Num       uint32 `json:"num"`
	UID       uint64 `json:"uid"`
	Uname     string `json:"uname"`
}

// ComboGift is a gift combo summary (COMBO_SEND).
type ComboGift struct {
	GiftID    uint32 `json:"gift_id"`
	GiftName  string `json:"gift_name"`
	TotalNum  uint32 `json:"total_num"`
	TotalCoin uint64 `json:"combo_total_coin"`
	UID       uint64 `json:"uid"`
	Uname     string `json:"uname"`
}

// GuardBuy is a guard (membership) purchase. Level 1 is 总督, 2 提督,
// 3 舰长.
type GuardBuy struct {
	GiftID     uint32 `json:"gift_id"`
	GiftName   string `json:"gift_name"`
	GuardLevel uint32 `json:"guard_level"`
	Num        uint32 `json:"num"`
	UID        uint64 `json:"uid"`
	Username   string `json:"username"`
}

// Interact is a viewer interaction (INTERACT_WORD). MsgType: 1 enter room,
// 2 follow, 3 share, 5 mutual follow.
type Interact struct {
	UID       uint64 `json:"uid"`
	Uname     string `json:"uname"`
	MsgType   uint32 `json:"msg_type"`
	FansMedal *Medal `json:"fans_medal"`
}

// EntryEffect announces a viewer entering with a visual effect.
type EntryEffect struct {
	UID         uint64 `json:"uid"`
	CopyWriting string `json:"copy_writing"`
}

// OnlineUser is one entry of the room's online rank.
type OnlineUser struct {
	GuardLevel uint32 `json:"guard_level"`
	Rank       int    `json:"rank"`
	UID        uint64 `json:"uid"`
	Uname      string `json:"uname"`
}

// OnlineRank is the room's top-viewer ranking (ONLINE_RANK_V2).
type OnlineRank struct {
	List     []OnlineUser
	RankType string
}

// OnlineRankCount is the count behind the rank list (ONLINE_RANK_COUNT).
type OnlineRankCount struct {
	Count int64 `json:"count"`
}

// WatchedChange updates the "watched by" counter (WATCHED_CHANGE).
type WatchedChange struct {
	Num       int64  `json:"num"`
	TextSmall string `json:"text_small"`
	TextLarge string `json:"text_large"`
}

// LikeClick is a single like tap surfaced to the room (LIKE_INFO_V3_CLICK).
type LikeClick struct {
	UID      uint64 `json:"uid"`
	Uname    string `json:"uname"`
	LikeText string `json:"like_text"`
}

// RoomChange signals a change to the room's title or area (ROOM_CHANGE).
type RoomChange struct {
	Title          string `json:"title"`
	AreaName       string `json:"area_name"`
	ParentAreaName string `json:"parent_area_name"`
}

// LiveStart signals the stream going live (LIVE).
type LiveStart struct {
	RoomID uint64 `json:"roomid"`
}

// LivePrepare signals the stream returning to the "preparing" state
// (PREPARING). The platform sends the room id as a string here.
type LivePrepare struct {
	RoomID string `json:"roomid"`
}

// Signal is a known cmd whose body carries nothing the client needs. The
// cmd is preserved so consumers can still count or filter them.
type Signal struct {
	Name string
}

// Unknown preserves a notification with a cmd outside the known set.
type Unknown struct {
	Name string
	Raw  json.RawMessage
}

func (Danmu) Cmd() string           { return "DANMU_MSG" }
func (Gift) Cmd() string            { return "SEND_GIFT" }
func (ComboGift) Cmd() string       { return "COMBO_SEND" }
func (GuardBuy) Cmd() string        { return "GUARD_BUY" }
func (Interact) Cmd() string        { return "INTERACT_WORD" }
func (EntryEffect) Cmd() string     { return "ENTRY_EFFECT" }
func (OnlineRank) Cmd() string      { return "ONLINE_RANK_V2" }
func (OnlineRankCount) Cmd() string { return "ONLINE_RANK_COUNT" }
func (WatchedChange) Cmd() string   { return "WATCHED_CHANGE" }
func (LikeClick) Cmd() string       { return "LIKE_INFO_V3_CLICK" }
func (RoomChange) Cmd() string      { return "ROOM_CHANGE" }
func (LiveStart) Cmd() string       { return "LIVE" }
func (LivePrepare) Cmd() string     { return "PREPARING" }
func (s Signal) Cmd() string        { return s.Name }
func (u Unknown) Cmd() string       { return u.Name }

// decoders is the static dispatch table from cmd to payload decoder.
var decoders = map[string]func(envelope) (Payload, error){
	"DANMU_MSG":          decodeDanmu,
	"SEND_GIFT":          dataDecoder[Gift](),
	"COMBO_SEND":         dataDecoder[ComboGift](),
	"GUARD_BUY":          dataDecoder[GuardBuy](),
	"INTERACT_WORD":      dataDecoder[Interact](),
	"ENTRY_EFFECT":       dataDecoder[EntryEffect](),
	"ONLINE_RANK_V2":     decodeOnlineRank,
	"ONLINE_RANK_COUNT":  dataDecoder[OnlineRankCount](),
	"WATCHED_CHANGE":     dataDecoder[WatchedChange](),
	"LIKE_INFO_V3_CLICK": dataDecoder[LikeClick](),
	"ROOM_CHANGE":        dataDecoder[RoomChange](),
	"LIVE":               decodeLiveStart,
	"PREPARING":          decodeLivePrepare,
}

// signalCmds are known cmds with no content worth decoding.
var signalCmds = []string{
	"LIVE_ROOM_TOAST_MESSAGE",
	"DANMU_AGGREGATION",
	"ENTRY_EFFECT_MUST_RECEIVE",
	"NOTICE_MSG",
	"STOP_LIVE_ROOM_LIST",
	"CUT_OFF",
	"ROOM_BLOCK_MSG",
	"ROOM_REAL_TIME_MESSAGE_UPDATE",
	"POPULARITY_RED_POCKET_NEW",
	"POPULARITY_RED_POCKET_START",
	"POPULARITY_RED_POCKET_WINNER_LIST",
	"POPULAR_RANK_CHANGED",
	"DM_INTERACTION",
	"HOT_RANK_CHANGED",
	"HOT_RANK_SETTLEMENT",
	"ONLINE_RANK_TOP3",
	"COMMON_NOTICE_DANMAKU",
	"COLLECTION_PRAISE_UPDATE_PROCESS",
	"LITTLE_MESSAGE_BOX",
	"TRADING_SCORE",
	"AREA_RANK_CHANGED",
	"WIDGET_BANNER",
	"WIDGET_WISH_LIST",
	"WIDGET_GIFT_STAR_PROCESS",
	"ANCHOR_LOT_START",
	"ANCHOR_LOT_END",
	"ANCHOR_LOT_CHECKSTATUS",
	"ANCHOR_LOT_AWARD",
	"LIKE_INFO_V3_UPDATE",
	"GIFT_STAR_PROCESS",
	"GUARD_HONOR_THOUSAND",
	"UNIVERSAL_EVENT_GIFT",
	"PK_INFO",
	"PK_BATTLE_PRE",
	"PK_BATTLE_PRE_NEW",
	"PK_BATTLE_START",
	"PK_BATTLE_START_NEW",
	"PK_BATTLE_PROCESS",
	"PK_BATTLE_PROCESS_NEW",
	"PK_BATTLE_FINAL_PROCESS",
	"PK_BATTLE_END",
	"PK_BATTLE_SETTLE",
	"PK_BATTLE_SETTLE_V2",
	"PK_BATTLE_SETTLE_NEW",
	"PK_BATTLE_SETTLE_USER",
	"PK_BATTLE_PUNISH_END",
	"PK_BATTLE_VIDEO_PUNISH_BEGIN",
	"PK_BATTLE_VIDEO_PUNISH_END",
	"PK_BATTLE_MULTIPLE_BEGIN",
	"PK_BATTLE_MULTIPLE_AWARD",
	"PK_BATTLE_MULTIPLE_RES",
	"PK_BATTLE_MULTIPLE_DRAW_RES",
}

func init() {
	for _, cmd := range signalCmds {
		name := cmd
		decoders[name] = func(envelope) (Payload, error) {
			return Signal{Name: name}, nil
		}
	}
}

// dataDecoder builds a decoder that unmarshals the envelope's data field
// into T.
func dataDecoder[T Payload]() func(envelope) (Payload, error) {
	return func(env envelope) (Payload, error) {
		var p T
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &p); err != nil {
				return nil, fmt.Errorf("%w: %s: %v", ErrBadBody, env.Cmd, err)
			}
		}
		return p, nil
	}
}

func decodeNotification(body []byte) (Payload, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("%w: notification envelope: %v", ErrBadBody, err)
	}
	env.raw = body

	dec, ok := decoders[env.Cmd]
	if !ok {
		return Unknown{Name: env.Cmd, Raw: body}, nil
	}
	return dec(env)
}

func decodeOnlineRank(env envelope) (Payload, error) {
	// The rank list arrives under "online_list" or "list" depending on the
	// message revision.
	var wire struct {
		OnlineList []OnlineUser `json:"online_list"`
		List       []OnlineUser `json:"list"`
		RankType   string       `json:"rank_type"`
	}
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &wire); err != nil {
			return nil, fmt.Errorf("%w: ONLINE_RANK_V2: %v", ErrBadBody, err)
		}
	}
	list := wire.OnlineList
	if len(list) == 0 {
		list = wire.List
	}
	return OnlineRank{List: list, RankType: wire.RankType}, nil
}

func decodeLiveStart(env envelope) (Payload, error) {
	// LIVE carries roomid at the top level of the body, not under data.
	var wire LiveStart
	if err := json.Unmarshal(env.raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: LIVE: %v", ErrBadBody, err)
	}
	return wire, nil
}

func decodeLivePrepare(env envelope) (Payload, error) {
	var wire LivePrepare
	if err := json.Unmarshal(env.raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: PREPARING: %v", ErrBadBody, err)
	}
	return wire, nil
}
