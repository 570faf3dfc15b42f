package games

import (
	"sidcontrol/internal/display"
	"sidcontrol/internal/rng"
	"sidcontrol/internal/trigger"
)

const (
	// The top panel row shows how many pieces are left in the level.
	boardHeight      = height - 1
	stackerLevels    = 9
	piecesPerLevel   = 40
	maxPieceSize     = 4
	stackerNumPieces = 7
)

var stackerDelays = [stackerLevels]int64{1000, 900, 800, 700, 600, 500, 400, 300, 200}

type piece struct {
	size  int
	cells [maxPieceSize][maxPieceSize]bool
}

func makePiece(rows ...string) piece {
	p := piece{size: len(rows)}
	for y, r := range rows {
		for x, c := range r {
			p.cells[y][x] = c == '#'
		}
	}
	return p
}

var pieces = [stackerNumPieces]piece{
	makePiece("..#", "###", "..."),
	makePiece("#..", "###", "..."),
	makePiece(".##", "##.", "..."),
	makePiece("##.", ".##", "..."),
	makePiece(".#.", "###", "..."),
	makePiece("##", "##"),
	makePiece("....", "####", "....", "...."),
}

// rotated returns p turned a quarter counterclockwise.
func (p piece) rotated() piece {
	r := piece{size: p.size}
	for y := 0; y < p.size; y++ {
		for x := 0; x < p.size; x++ {
			r.cells[p.size-1-x][y] = p.cells[y][x]
		}
	}
	return r
}

// Stacker drops pieces onto a 10x19 board; full lines disappear. After 40
// pieces the board is cleared and the next level falls faster.
type Stacker struct {
	disp display.Display
	rnd  rng.Source

	active   bool
	starting bool
	startAt  int64
	last     int64

	board     [boardHeight][width]bool
	cur       piece
	cx, cy    int
	havePiece bool
	count     int
	level     int
	lines     int

	paused bool
	over   bool
	overAt int64
	phase  int64
}

// NewStacker returns an inactive game.
func NewStacker(d display.Display, r rng.Source) *Stacker {
	return &Stacker{disp: d, rnd: r}
}

func (s *Stacker) Title() string { return "SIDDLY" }

func (s *Stacker) Active() bool { return s.active }

// Level returns the current level, starting at 0.
func (s *Stacker) Level() int { return s.level }

// Lines returns the number of lines cleared since the game started.
func (s *Stacker) Lines() int { return s.lines }

func (s *Stacker) Start(now int64) {
	s.active = true
	s.reset()
	s.starting = true
	s.startAt = now
	s.last = now
}

func (s *Stacker) Stop() { s.active = false }

func (s *Stacker) reset() {
	s.board = [boardHeight][width]bool{}
	s.count = 0
	s.level = 0
	s.lines = 0
	s.havePiece = false
	s.over = false
	s.paused = false
}

func (s *Stacker) Input(k trigger.Key) {
	if !s.active || s.over {
		return
	}
	switch k {
	case trigger.Key3:
		s.reset()
		s.draw()
		return
	case trigger.Key9:
		s.paused = !s.paused
		if s.paused {
			drawPause(s.disp)
		} else {
			s.draw()
		}
		return
	}
	if s.paused || !s.havePiece {
		return
	}
	switch k {
	case trigger.Key0:
		for s.fits(s.cur, s.cx, s.cy+1) {
			s.cy++
		}
	case trigger.KeyUp:
		if r := s.cur.rotated(); s.fits(r, s.cx, s.cy) {
			s.cur = r
		}
	case trigger.KeyDown:
		if s.fits(s.cur, s.cx, s.cy+1) {
			s.cy++
		}
	case trigger.KeyLeft:
		if s.fits(s.cur, s.cx-1, s.cy) {
			s.cx--
		}
	case trigger.KeyRight:
		if s.fits(s.cur, s.cx+1, s.cy) {
			s.cx++
		}
	default:
		return
	}
	s.draw()
}

func (s *Stacker) Tick(now int64) {
	if !s.active {
		return
	}
	if s.starting {
		if now-s.startAt < startupMs {
			return
		}
		s.starting = false
		s.last = now
		s.spawn(now)
		s.draw()
		return
	}
	if s.over {
		if now-s.overAt >= gameOverMs {
			s.reset()
			s.spawn(now)
			s.draw()
			return
		}
		var f field
		s.fill(&f)
		blink(s.disp, &f, now-s.overAt, &s.phase)
		return
	}
	if s.paused || now-s.last < stackerDelays[s.level] {
		return
	}
	s.last = now

	if !s.havePiece {
		s.spawn(now)
	} else if s.fits(s.cur, s.cx, s.cy+1) {
		s.cy++
	} else {
		s.lock()
		s.clearLines()
		if s.count >= piecesPerLevel {
			s.levelUp()
		}
		s.spawn(now)
	}
	s.draw()
}

func (s *Stacker) fits(p piece, px, py int) bool {
	for y := 0; y < p.size; y++ {
		for x := 0; x < p.size; x++ {
			if !p.cells[y][x] {
				continue
			}
			bx, by := px+x, py+y
			if bx < 0 || bx >= width || by >= boardHeight {
				return false
			}
			if by >= 0 && s.board[by][bx] {
				return false
			}
		}
	}
	return true
}

func (s *Stacker) spawn(now int64) {
	p := pieces[s.rnd.IntN(stackerNumPieces)]
	s.cur = p
	s.cx = (width - p.size) / 2
	s.cy = 0
	if !s.fits(p, s.cx, s.cy) {
		s.havePiece = false
		s.over = true
		s.overAt = now
		s.phase = -1
		return
	}
	s.havePiece = true
	s.count++
}

func (s *Stacker) lock() {
	for y := 0; y < s.cur.size; y++ {
		for x := 0; x < s.cur.size; x++ {
			by := s.cy + y
			if s.cur.cells[y][x] && by >= 0 {
				s.board[by][s.cx+x] = true
			}
		}
	}
	s.havePiece = false
}

func (s *Stacker) clearLines() {
	for y := boardHeight - 1; y >= 0; y-- {
		full := true
		for _, c := range s.board[y] {
			if !c {
				full = false
				break
			}
		}
		if !full {
			continue
		}
		copy(s.board[1:y+1], s.board[:y])
		s.board[0] = [width]bool{}
		s.lines++
		y++
	}
}

func (s *Stacker) levelUp() {
	s.board = [boardHeight][width]bool{}
	s.count = 0
	if s.level < stackerLevels-1 {
		s.level++
	}
}

func (s *Stacker) fill(f *field) {
	left := min(width, (piecesPerLevel-s.count)*width/piecesPerLevel+1)
	for x := 0; x < left; x++ {
		f.set(x, 0)
	}
	for y := range s.board {
		for x, on := range s.board[y] {
			if on {
				f.set(x, y+1)
			}
		}
	}
	if s.havePiece {
		for y := 0; y < s.cur.size; y++ {
			for x := 0; x < s.cur.size; x++ {
				if s.cur.cells[y][x] {
					f.set(s.cx+x, s.cy+y+1)
				}
			}
		}
	}
}

func (s *Stacker) draw() {
	var f field
	s.fill(&f)
	f.draw(s.disp)
}
