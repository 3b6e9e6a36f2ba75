package runtime

import "testing"

func TestHeapAllocatorQuota(t *testing.T) {
	h := NewHeapAllocator(16, 0)
	if _, err := h.AllocRaw(10); err != nil {
		t.Fatalf("expected alloc within quota to succeed: %v", err)
	}
	if _, err := h.AllocRaw(10); err == nil {
		t.Fatalf("expected alloc beyond quota to fail")
	}
	h.DeallocRaw(10)
	if got := h.Used(); got != 0 {
		t.Fatalf("expected used=0 after dealloc, got %d", got)
	}
}

func TestHeapAllocatorManagedAppendDoublesCapacity(t *testing.T) {
	h := NewHeapAllocator(1<<20, 0)
	blk, err := h.AllocManaged([]byte("ab"))
	if err != nil {
		t.Fatalf("alloc managed: %v", err)
	}
	if err := h.Append(blk, []byte("cd")); err != nil {
		t.Fatalf("append: %v", err)
	}
	if string(blk.Bytes) != "abcd" {
		t.Fatalf("expected abcd, got %q", blk.Bytes)
	}
	if err := h.Append(blk, nil); err != nil {
		t.Fatalf("append empty should be a no-op: %v", err)
	}
	if got := h.LiveBlocks(); got != 1 {
		t.Fatalf("expected 1 live block, got %d", got)
	}
	h.FreeManaged(blk)
	if got := h.LiveBlocks(); got != 0 {
		t.Fatalf("expected 0 live blocks after free, got %d", got)
	}
	if blk.Bytes != nil {
		t.Fatalf("expected freed block to drop its backing bytes")
	}
}

func TestHeapAllocatorWithQuotaIsIndependent(t *testing.T) {
	parent := NewHeapAllocator(100, 0)
	if _, err := parent.AllocRaw(50); err != nil {
		t.Fatalf("parent alloc: %v", err)
	}
	child := parent.WithQuota(10)
	if _, err := child.AllocRaw(10); err != nil {
		t.Fatalf("child alloc within its own quota: %v", err)
	}
	if _, err := child.AllocRaw(1); err == nil {
		t.Fatalf("expected child quota exceeded")
	}
	if got := parent.Used(); got != 50 {
		t.Fatalf("expected parent usage untouched by child, got %d", got)
	}
}
