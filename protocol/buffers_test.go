package protocol

import (
	"bytes"
	"testing"
)

func TestScratchOutput(t *testing.T) {
	scratch := NewScratchOutput()

	data1 := []byte{1, 2, 3}
	scratch.Output(data1)

	if scratch.CurPosition() != 3 {
		t.Errorf("Expected position 3, got %d", scratch.CurPosition())
	}

	result := scratch.Bytes()
	if len(result) != 3 {
		t.Errorf("Expected 3 bytes in result, got %d", len(result))
	}

	data2 := []byte{4, 5}
	scratch.Output(data2)

	if scratch.CurPosition() != 5 {
		t.Errorf("Expected position 5, got %d", scratch.CurPosition())
	}

	// Update only patches bytes already written
	scratch.Update(0, 99)
	scratch.Update(10, 42)
	if scratch.CurPosition() != 5 {
		t.Errorf("Update past the write position moved it to %d", scratch.CurPosition())
	}
	result = scratch.Bytes()
	if result[0] != 99 {
		t.Errorf("Expected first byte to be 99, got %d", result[0])
	}

	// DataSince
	since := scratch.DataSince(2)
	if len(since) != 3 || since[0] != 3 {
		t.Errorf("DataSince(2) failed: expected [3 4 5], got %v", since)
	}

	// Reset
	scratch.Reset()
	if scratch.CurPosition() != 0 {
		t.Errorf("After reset, expected position 0, got %d", scratch.CurPosition())
	}
}

func TestFifoBuffer(t *testing.T) {
	fifo := NewFifoBuffer(10)

	if !fifo.IsEmpty() {
		t.Error("New FIFO should be empty")
	}
	if fifo.Free() != 10 {
		t.Errorf("Empty FIFO should have 10 free, got %d", fifo.Free())
	}

	written := fifo.Write([]byte{1, 2, 3, 4, 5})
	if written != 5 {
		t.Errorf("Expected to write 5 bytes, wrote %d", written)
	}
	if fifo.Len() != 5 {
		t.Errorf("Expected 5 bytes queued, got %d", fifo.Len())
	}

	fifo.Pop(3)
	if !bytes.Equal(fifo.Data(), []byte{4, 5}) {
		t.Errorf("After popping 3, expected [4 5], got %v", fifo.Data())
	}

	// popping more than is queued empties the FIFO
	fifo.Pop(7)
	if !fifo.IsEmpty() {
		t.Errorf("Expected empty FIFO, %d queued", fifo.Len())
	}

	fifo.Reset()
	bigData := make([]byte, 12)
	for i := range bigData {
		bigData[i] = byte(i)
	}
	written = fifo.Write(bigData)
	if written != 10 {
		t.Errorf("Expected to write 10 bytes to size-10 FIFO, wrote %d", written)
	}
	if !bytes.Equal(fifo.Data(), bigData[:10]) {
		t.Errorf("Truncated write stored %v", fifo.Data())
	}
}

func TestFifoBufferWrapAround(t *testing.T) {
	fifo := NewFifoBuffer(5)

	fifo.Write([]byte{1, 2, 3, 4})
	fifo.Pop(2)

	// the tail wraps to the front of the ring
	written := fifo.Write([]byte{5, 6, 7})
	if written != 3 {
		t.Errorf("Expected to write 3 bytes, wrote %d", written)
	}
	if fifo.Free() != 0 {
		t.Errorf("Expected full FIFO, %d free", fifo.Free())
	}

	if got := fifo.Data(); !bytes.Equal(got, []byte{3, 4, 5, 6, 7}) {
		t.Errorf("Wrap-around data mismatch: got %v", got)
	}

	fifo.Pop(4)
	if got := fifo.Data(); !bytes.Equal(got, []byte{7}) {
		t.Errorf("Expected [7] after popping across the wrap, got %v", got)
	}
}

func TestFifoBufferWriteFrame(t *testing.T) {
	fifo := NewFifoBuffer(8)

	if !fifo.WriteFrame([]byte{1, 2, 3, 4, 5}) {
		t.Fatal("First frame should fit")
	}

	// 3 bytes free: a 4-byte frame must be refused whole
	if fifo.WriteFrame([]byte{6, 7, 8, 9}) {
		t.Error("Frame larger than free space was accepted")
	}
	if fifo.Len() != 5 {
		t.Errorf("Refused frame changed the FIFO: %d queued", fifo.Len())
	}

	if !fifo.WriteFrame([]byte{6, 7, 8}) {
		t.Error("Frame exactly matching free space was refused")
	}
	if fifo.Free() != 0 {
		t.Errorf("Expected full FIFO, %d free", fifo.Free())
	}
}
