package games

import (
	"testing"

	"sidcontrol/internal/display"
	"sidcontrol/internal/rng"
	"sidcontrol/internal/trigger"
)

func TestSnake_WaitsBeforeFirstMove(t *testing.T) {
	f := display.NewFrame(nil)
	s := NewSnake(f, &rng.Sequence{Values: []int{0}})
	s.Start(0)
	s.Tick(999)
	if f.Snapshot().Seq != 0 {
		t.Fatalf("drew during startup")
	}
	s.Tick(1000)
	snap := f.Snapshot()
	// Head at (5,10), body to the left; y 10 is panel row 9.
	for x := 2; x <= 5; x++ {
		if !snap.Lit(x, display.MaxRow-10) {
			t.Fatalf("body segment %d not drawn", x)
		}
	}
}

func TestSnake_MovesAndWraps(t *testing.T) {
	f := display.NewFrame(nil)
	s := NewSnake(f, &rng.Sequence{Values: []int{0}})
	s.Start(0)
	now := int64(startupMs)
	s.Tick(now)
	s.Input(trigger.KeyLeft) // reversal is ignored
	for i := 0; i < 5; i++ {
		now += snakeDelays[0]
		s.Tick(now)
	}
	// Head moved from x 5 to x 10, wrapping to 0.
	if h := s.body[0]; h != (point{0, 10}) {
		t.Fatalf("head at %+v", h)
	}
	if s.Len() != snakeStartLen {
		t.Fatalf("length %d", s.Len())
	}
}

func TestSnake_EatsApple(t *testing.T) {
	s := NewSnake(display.NewFrame(nil), &rng.Sequence{Values: []int{7, 3}})
	s.Start(0)
	s.apple = point{6, 10}
	now := int64(startupMs)
	s.Tick(now)
	now += snakeDelays[0]
	s.Tick(now)
	if s.Len() != snakeStartLen+1 {
		t.Fatalf("length %d after eating", s.Len())
	}
	if s.apple != (point{7, 3}) {
		t.Fatalf("new apple at %+v", s.apple)
	}
}

func TestSnake_SelfCollisionEndsAndRestarts(t *testing.T) {
	s := NewSnake(display.NewFrame(nil), &rng.Sequence{Values: []int{0}})
	s.Start(0)
	now := int64(startupMs)
	s.Tick(now)
	// A body long enough to bite.
	s.body = []point{{5, 10}, {4, 10}, {4, 11}, {5, 11}, {6, 11}, {6, 10}}
	s.Input(trigger.KeyDown)
	now += snakeDelays[0]
	s.Tick(now)
	if !s.over {
		t.Fatalf("collision not detected")
	}
	s.Input(trigger.Key3)
	if !s.over {
		t.Fatalf("input accepted during game over")
	}
	s.Tick(now + gameOverMs)
	if s.over || s.Len() != snakeStartLen {
		t.Fatalf("game not restarted: over=%t len=%d", s.over, s.Len())
	}
}

func TestSnake_Pause(t *testing.T) {
	s := NewSnake(display.NewFrame(nil), &rng.Sequence{Values: []int{0}})
	s.Start(0)
	s.Tick(startupMs)
	s.Input(trigger.Key9)
	s.Tick(startupMs + 5000)
	if h := s.body[0]; h != (point{5, 10}) {
		t.Fatalf("paused snake moved to %+v", h)
	}
	s.Input(trigger.Key9)
	s.Tick(startupMs + 5000)
	if h := s.body[0]; h != (point{6, 10}) {
		t.Fatalf("resumed snake at %+v", h)
	}
}

func TestPiece_RotateFourTimesIsIdentity(t *testing.T) {
	for i, p := range pieces {
		r := p.rotated().rotated().rotated().rotated()
		if r != p {
			t.Fatalf("piece %d changed after a full turn", i)
		}
	}
	bar := pieces[6].rotated()
	for y := 0; y < 4; y++ {
		if !bar.cells[y][1] {
			t.Fatalf("rotated bar not vertical: %v", bar.cells)
		}
	}
}

func TestStacker_DropAndLock(t *testing.T) {
	f := display.NewFrame(nil)
	// Always the square.
	s := NewStacker(f, &rng.Sequence{Values: []int{5}})
	s.Start(0)
	now := int64(startupMs)
	s.Tick(now)
	if !s.havePiece || s.cur.size != 2 {
		t.Fatalf("no square spawned")
	}
	s.Input(trigger.Key0)
	if s.cy != boardHeight-2 {
		t.Fatalf("dropped to %d", s.cy)
	}
	now += stackerDelays[0]
	s.Tick(now)
	if !s.board[boardHeight-1][4] || !s.board[boardHeight-2][5] {
		t.Fatalf("square not locked at the bottom")
	}
	if s.count != 2 {
		t.Fatalf("piece count %d", s.count)
	}
	// Bottom panel row shows the locked square.
	if !f.Snapshot().Lit(4, 0) {
		t.Fatalf("board not drawn")
	}
}

func TestStacker_ClearsFullLines(t *testing.T) {
	s := NewStacker(display.NewFrame(nil), &rng.Sequence{Values: []int{5}})
	for x := 0; x < width; x++ {
		s.board[boardHeight-1][x] = true
	}
	s.board[boardHeight-2][3] = true
	s.clearLines()
	if s.lines != 1 {
		t.Fatalf("cleared %d lines", s.lines)
	}
	if !s.board[boardHeight-1][3] || s.board[boardHeight-2][3] {
		t.Fatalf("rows above did not fall")
	}
}

func TestStacker_MovesStayOnBoard(t *testing.T) {
	s := NewStacker(display.NewFrame(nil), &rng.Sequence{Values: []int{5}})
	s.Start(0)
	s.Tick(startupMs)
	for i := 0; i < 10; i++ {
		s.Input(trigger.KeyLeft)
	}
	if s.cx != 0 {
		t.Fatalf("cx = %d", s.cx)
	}
	for i := 0; i < 10; i++ {
		s.Input(trigger.KeyRight)
	}
	if s.cx != width-2 {
		t.Fatalf("cx = %d", s.cx)
	}
}

func TestStacker_GameOverWhenTopBlocked(t *testing.T) {
	s := NewStacker(display.NewFrame(nil), &rng.Sequence{Values: []int{5}})
	s.Start(0)
	s.starting = false
	s.board[0][4] = true
	s.spawn(100)
	if !s.over || s.havePiece {
		t.Fatalf("spawn onto a blocked top did not end the game")
	}
	s.Tick(100 + gameOverMs)
	if s.over || s.board[0][4] {
		t.Fatalf("game not restarted")
	}
}
