package ioctl

import "testing"

func TestAllocateTerminalExhaustion(t *testing.T) {
	c := New()
	seen := map[int]bool{}
	for i := 0; i < NumTerminals; i++ {
		base, ok := c.AllocateTerminal()
		if !ok {
			t.Fatalf("allocation %d unexpectedly failed", i)
		}
		if seen[base] {
			t.Fatalf("terminal %d allocated twice", base)
		}
		seen[base] = true
	}
	if _, ok := c.AllocateTerminal(); ok {
		t.Fatal("expected allocation to fail once all terminals are in use")
	}

	c.ReleaseTerminal(TermB)
	if _, ok := c.AllocateTerminal(); !ok {
		t.Fatal("expected allocation to succeed after release")
	}
}

func TestRoundTripReadWrite(t *testing.T) {
	c := New()
	base, _ := c.AllocateTerminal()

	if _, ready, _ := c.Read(base + OffKeyboardReady); ready {
		if v, _, _ := c.Read(base + OffKeyboardReady); v != 0 {
			t.Fatalf("keyboard-ready = %d before any byte queued, want 0", v)
		}
	}

	c.Feed(base, 'X')
	v, ready, err := c.Read(base + OffKeyboardReady)
	if err != nil || !ready || v != 1 {
		t.Fatalf("keyboard-ready after feed = (%d,%v,%v), want (1,true,nil)", v, ready, err)
	}

	val, ready, err := c.Read(base + OffKeyboard)
	if err != nil || !ready || val != 'X' {
		t.Fatalf("keyboard read = (%d,%v,%v), want ('X',true,nil)", val, ready, err)
	}

	ready, err = c.Write(base+OffScreen, 'Y')
	if err != nil || !ready {
		t.Fatalf("screen write = (%v,%v), want (true,nil)", ready, err)
	}
	if got := c.Screen(base); string(got) != "Y" {
		t.Fatalf("Screen() = %q, want %q", got, "Y")
	}
}

func TestClockTick(t *testing.T) {
	c := New()
	c.ArmTimer(3)
	for i := 0; i < 2; i++ {
		c.Tick()
	}
	if v, _, _ := c.Read(ClockInterrupt); v != 0 {
		t.Fatalf("interrupt fired early: %d", v)
	}
	c.Tick()
	if v, _, _ := c.Read(ClockInterrupt); v != 1 {
		t.Fatalf("interrupt did not fire at zero: %d", v)
	}
}

func TestReadUnreadyKeyboard(t *testing.T) {
	c := New()
	base, _ := c.AllocateTerminal()
	_, ready, err := c.Read(base + OffKeyboard)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if ready {
		t.Fatal("expected not-ready with empty keyboard queue")
	}
}
