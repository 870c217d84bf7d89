package streaming

import "parley/internal/domain/models/chat"

// SplitPayload cuts a serialized payload into transmission chunks of at
// most size bytes. The transport has a hard per-frame ceiling and no flow
// control of its own, so the payload travels as ceil(len/size) BODY frames
// whose parts concatenate back to the original in index order.
func SplitPayload(payload string, size int) []string {
	if size <= 0 {
		size = chat.ChunkSizeLimit
	}
	if payload == "" {
		return nil
	}

	chunks := make([]string, 0, (len(payload)+size-1)/size)
	for start := 0; start < len(payload); start += size {
		end := start + size
		if end > len(payload) {
			end = len(payload)
		}
		chunks = append(chunks, payload[start:end])
	}
	return chunks
}
