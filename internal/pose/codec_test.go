package pose

import (
	"bytes"
	"encoding/binary"
	"testing"
)

func TestMessageFraming(t *testing.T) {
	var buf bytes.Buffer

	first := poseResponse{Seq: 1, Landmarks: map[string]Landmark{"right_elbow": {X: 0.5, Y: 0.4, Confidence: 0.9}}}
	second := poseResponse{Seq: 2}
	if err := writeMessage(&buf, first); err != nil {
		t.Fatalf("write first: %v", err)
	}
	if err := writeMessage(&buf, second); err != nil {
		t.Fatalf("write second: %v", err)
	}

	var got poseResponse
	if err := readMessage(&buf, &got); err != nil {
		t.Fatalf("read first: %v", err)
	}
	if got.Seq != 1 || got.Landmarks["right_elbow"].Y != 0.4 {
		t.Errorf("Unexpected first message %+v", got)
	}

	got = poseResponse{}
	if err := readMessage(&buf, &got); err != nil {
		t.Fatalf("read second: %v", err)
	}
	if got.Seq != 2 || len(got.Landmarks) != 0 {
		t.Errorf("Unexpected second message %+v", got)
	}
}

func TestReadMessageRejectsOversize(t *testing.T) {
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], maxMessageSize+1)

	var got poseResponse
	if err := readMessage(bytes.NewReader(prefix[:]), &got); err == nil {
		t.Error("Expected error for oversized message")
	}
}

func TestReadMessageTruncatedBody(t *testing.T) {
	var prefix [4]byte
	binary.BigEndian.PutUint32(prefix[:], 10)

	var got poseResponse
	if err := readMessage(bytes.NewReader(append(prefix[:], 0x81)), &got); err == nil {
		t.Error("Expected error for truncated body")
	}
}
