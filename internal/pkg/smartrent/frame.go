package smartrent

import (
	"encoding/json"
	"strconv"
	"strings"
)

/*
 *  Channel frames are positional JSON arrays:
 *
 *    [join_ref, ref, topic, event, payload]
 *
 *  The vendor sends the refs as the literal string "null".  Outbound we
 *  join the device topic and then push update_attributes; inbound we only
 *  care about phx_reply frames on a devices: topic.
 */

const (
	topicPrefix        = "devices:"
	eventJoin          = "phx_join"
	eventReply         = "phx_reply"
	eventUpdateAttribs = "update_attributes"
	nullRef            = "null"
	statusOK           = "ok"
)

type attribute struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type updateAttributesPayload struct {
	DeviceID   int         `json:"device_id"`
	Attributes []attribute `json:"attributes"`
}

func deviceTopic(deviceID int) string {
	return topicPrefix + strconv.Itoa(deviceID)
}

func encodeFrame(topic string, event string, payload interface{}) ([]byte, error) {
	return json.Marshal([]interface{}{nullRef, nullRef, topic, event, payload})
}

func joinFrame(deviceID int) ([]byte, error) {
	return encodeFrame(deviceTopic(deviceID), eventJoin, struct{}{})
}

func commandFrame(cmd Command) ([]byte, error) {
	payload := updateAttributesPayload{
		DeviceID:   cmd.DeviceID,
		Attributes: []attribute{{Name: cmd.Attribute, Value: cmd.Value}},
	}
	return encodeFrame(deviceTopic(cmd.DeviceID), eventUpdateAttribs, payload)
}

// reply is the outcome of parsing one inbound frame
type reply struct {
	Recognized bool
	Topic      string
	Status     string
}

func (r reply) OK() bool {
	return r.Recognized && r.Status == statusOK
}

// parseReply never fails: anything that is not a 5 element phx_reply on a
// devices: topic with an object payload comes back unrecognized.  A payload
// object without a status is recognized with an empty (not ok) status.
func parseReply(msg []byte) reply {
	var elems []json.RawMessage
	if err := json.Unmarshal(msg, &elems); err != nil || len(elems) != 5 {
		return reply{}
	}

	var topic, event string
	if err := json.Unmarshal(elems[2], &topic); err != nil || !strings.HasPrefix(topic, topicPrefix) {
		return reply{}
	}
	if err := json.Unmarshal(elems[3], &event); err != nil || event != eventReply {
		return reply{}
	}

	var payload map[string]json.RawMessage
	if err := json.Unmarshal(elems[4], &payload); err != nil || payload == nil {
		return reply{}
	}

	var status string
	if raw, ok := payload["status"]; ok {
		_ = json.Unmarshal(raw, &status)
	}

	return reply{Recognized: true, Topic: topic, Status: status}
}
