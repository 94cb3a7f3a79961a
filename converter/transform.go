package converter

import (
	"github.com/machinefabric/tensorconv-go/buffer"
	"github.com/machinefabric/tensorconv-go/tensor"
)

// depad copies rows of rowSize bytes out of rows of stride bytes into a
// tightly packed frame. It is the only transformation that copies data.
func depad(buf *buffer.Buffer, rowSize, stride, rows int) (*buffer.Buffer, error) {
	src := buf.Merged().Bytes()
	if need := stride*(rows-1) + rowSize; len(src) < need {
		return nil, newError(KindFlow, nil, "padded frame needs %d bytes, got %d", need, len(src))
	}
	dst := make([]byte, rowSize*rows)
	for r := 0; r < rows; r++ {
		copy(dst[r*rowSize:(r+1)*rowSize], src[r*stride:r*stride+rowSize])
	}
	out := buffer.New(dst)
	out.CopyMetadata(buf)
	return out, nil
}

// resize zero-pads or truncates buf to exactly size bytes.
func resize(buf *buffer.Buffer, size int) *buffer.Buffer {
	dst := make([]byte, size)
	copy(dst, buf.Merged().Bytes())
	out := buffer.New(dst)
	out.CopyMetadata(buf)
	return out
}

// splitTensors returns one memory per tensor of infos. A buffer whose
// memories already match the tensor sizes is returned as is; otherwise the
// merged content is sliced by tensor size without copying.
func splitTensors(buf *buffer.Buffer, infos []tensor.Info) (*buffer.Buffer, error) {
	if matchesTensors(buf, infos) {
		return buf, nil
	}
	total := 0
	for _, info := range infos {
		total += info.Size()
	}
	if buf.Size() != total {
		return nil, newError(KindPayloadSizeMismatch, nil,
			"buffer holds %d bytes, its %d tensors need %d", buf.Size(), len(infos), total)
	}

	mem := buf.Merged()
	out := buffer.NewWithMemories()
	out.CopyMetadata(buf)
	if len(infos) == 1 {
		out.Append(mem)
		return out, nil
	}

	offset := 0
	for i, info := range infos {
		size := info.Size()
		part, err := mem.Share(offset, size)
		if err != nil {
			return nil, newError(KindPayloadSizeMismatch, err, "tensor %d of %d", i+1, len(infos))
		}
		out.Append(part)
		offset += size
	}
	return out, nil
}

// matchesTensors reports whether buf holds exactly one memory per tensor,
// each of the tensor's size.
func matchesTensors(buf *buffer.Buffer, infos []tensor.Info) bool {
	if buf.NMemory() != len(infos) {
		return false
	}
	for i, info := range infos {
		if buf.Memory(i).Size() != info.Size() {
			return false
		}
	}
	return true
}

// appendHeaders prefixes every tensor memory with its flexible header.
func appendHeaders(buf *buffer.Buffer, infos []tensor.Info, media tensor.MediaType) (*buffer.Buffer, error) {
	split, err := splitTensors(buf, infos)
	if err != nil {
		return nil, err
	}
	out := buffer.NewWithMemories()
	out.CopyMetadata(buf)
	for i, info := range infos {
		header, err := tensor.EncodeHeader(tensor.NewMetaInfo(info, media))
		if err != nil {
			return nil, newError(KindFlow, err, "cannot describe tensor %d", i)
		}
		payload := split.Memory(i).Bytes()
		record := make([]byte, 0, len(header)+len(payload))
		record = append(record, header...)
		record = append(record, payload...)
		out.Append(buffer.NewMemory(record))
	}
	return out, nil
}

// headerMedia is the media tag written into flexible headers.
func headerMedia(m tensor.MediaType) tensor.MediaType {
	switch m {
	case tensor.MediaVideo, tensor.MediaAudio, tensor.MediaText, tensor.MediaOctet:
		return m
	default:
		return tensor.MediaTensor
	}
}

// demux strips the flexible headers of buf. Each memory of a multi-memory
// buffer holds one record; a single memory may hold several records back to
// back. The payloads are shared with the input.
func demux(buf *buffer.Buffer) (*buffer.Buffer, []tensor.Info, error) {
	out := buffer.NewWithMemories()
	out.CopyMetadata(buf)
	var infos []tensor.Info

	add := func(mem *buffer.Memory, n int, whole bool) (int, error) {
		meta, err := tensor.ParseHeader(mem.Bytes())
		if err != nil {
			return 0, newError(KindPayloadSizeMismatch, err, "record %d", n)
		}
		want := meta.DataSize()
		got := mem.Size() - tensor.HeaderSize
		if got < want || (whole && got != want) {
			return 0, newError(KindPayloadSizeMismatch, nil,
				"record %d carries %d payload bytes, its header declares %d", n, got, want)
		}
		payload, err := mem.Share(tensor.HeaderSize, want)
		if err != nil {
			return 0, newError(KindPayloadSizeMismatch, err, "record %d", n)
		}
		if len(infos) == tensor.SizeLimit {
			return 0, newError(KindPayloadSizeMismatch, nil, "more than %d records", tensor.SizeLimit)
		}
		out.Append(payload)
		infos = append(infos, meta.Info())
		return tensor.HeaderSize + want, nil
	}

	if buf.NMemory() > 1 {
		for i, mem := range buf.Memories() {
			if _, err := add(mem, i+1, true); err != nil {
				return nil, nil, err
			}
		}
		return out, infos, nil
	}

	mem := buf.Merged()
	for n := 1; mem.Size() > 0; n++ {
		used, err := add(mem, n, false)
		if err != nil {
			return nil, nil, err
		}
		if mem, err = mem.Share(used, -1); err != nil {
			return nil, nil, newError(KindPayloadSizeMismatch, err, "record %d", n)
		}
	}
	if len(infos) == 0 {
		return nil, nil, newError(KindPayloadSizeMismatch, nil, "buffer holds no records")
	}
	return out, infos, nil
}
