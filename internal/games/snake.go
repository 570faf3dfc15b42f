package games

import (
	"sidcontrol/internal/display"
	"sidcontrol/internal/rng"
	"sidcontrol/internal/trigger"
)

const (
	snakeStartLen   = 4
	snakeMaxLen     = 100
	applesPerLevel  = 15
	snakeNumLevels  = 9
	snakeStartLevel = 0
)

var snakeDelays = [snakeNumLevels]int64{700, 600, 550, 500, 450, 400, 300, 200, 100}

type point struct{ x, y int }

// Snake is the classic: eat apples, grow, do not bite yourself. The field
// wraps at the edges. Every 15 apples the snake is reset and moves faster.
type Snake struct {
	disp display.Display
	rnd  rng.Source

	active   bool
	starting bool
	startAt  int64
	last     int64

	body   []point // head first
	dx, dy int
	apple  point
	apples int
	level  int

	paused bool
	over   bool
	overAt int64
	phase  int64
}

// NewSnake returns an inactive game.
func NewSnake(d display.Display, r rng.Source) *Snake {
	return &Snake{disp: d, rnd: r}
}

func (s *Snake) Title() string { return "SNAKE" }

func (s *Snake) Active() bool { return s.active }

// Level returns the current level, starting at 0.
func (s *Snake) Level() int { return s.level }

// Len returns the snake length including its head.
func (s *Snake) Len() int { return len(s.body) }

func (s *Snake) Start(now int64) {
	s.active = true
	s.level = snakeStartLevel
	s.reset()
	s.starting = true
	s.startAt = now
	s.last = now
}

func (s *Snake) Stop() { s.active = false }

func (s *Snake) reset() {
	head := point{width / 2, height / 2}
	s.body = s.body[:0]
	for i := 0; i < snakeStartLen; i++ {
		s.body = append(s.body, point{head.x - i, head.y})
	}
	s.dx, s.dy = 1, 0
	s.apple = point{width / 4, height / 4}
	s.apples = 1
	s.over = false
	s.paused = false
}

func (s *Snake) Input(k trigger.Key) {
	if !s.active || s.over {
		return
	}
	switch k {
	case trigger.Key3:
		s.level = snakeStartLevel
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
	if s.paused {
		return
	}
	dx, dy := s.dx, s.dy
	switch k {
	case trigger.KeyLeft:
		dx, dy = -1, 0
	case trigger.KeyRight:
		dx, dy = 1, 0
	case trigger.KeyUp:
		dx, dy = 0, -1
	case trigger.KeyDown:
		dx, dy = 0, 1
	}
	// Reversing would run straight into the neck.
	if dx == -s.dx && dy == -s.dy {
		return
	}
	s.dx, s.dy = dx, dy
}

func (s *Snake) Tick(now int64) {
	if !s.active {
		return
	}
	if s.starting {
		if now-s.startAt < startupMs {
			return
		}
		s.starting = false
		s.last = now
		s.draw()
		return
	}
	if s.over {
		if now-s.overAt >= gameOverMs {
			s.level = snakeStartLevel
			s.reset()
			s.last = now
			s.draw()
			return
		}
		var f field
		s.fill(&f)
		blink(s.disp, &f, now-s.overAt, &s.phase)
		return
	}
	if s.paused || now-s.last < snakeDelays[s.level] {
		return
	}
	s.last = now
	s.step(now)
	s.draw()
}

func (s *Snake) step(now int64) {
	head := s.body[0]
	head.x = (head.x + s.dx + width) % width
	head.y = (head.y + s.dy + height) % height

	grow := head == s.apple
	s.body = append(s.body, point{})
	copy(s.body[1:], s.body)
	s.body[0] = head
	if !grow {
		s.body = s.body[:len(s.body)-1]
	}

	if grow {
		s.apples++
		if len(s.body) >= snakeMaxLen || s.apples > applesPerLevel {
			if s.level < snakeNumLevels-1 {
				s.level++
			} else {
				s.level = snakeStartLevel
			}
			s.reset()
			return
		}
		s.placeApple()
	}

	for _, p := range s.body[1:] {
		if p == head {
			s.over = true
			s.overAt = now
			s.phase = -1
			return
		}
	}
}

func (s *Snake) placeApple() {
	for {
		a := point{s.rnd.IntN(width), s.rnd.IntN(height)}
		free := true
		for _, p := range s.body {
			if p == a {
				free = false
				break
			}
		}
		if free {
			s.apple = a
			return
		}
	}
}

func (s *Snake) fill(f *field) {
	for _, p := range s.body {
		f.set(p.x, p.y)
	}
	f.set(s.apple.x, s.apple.y)
}

func (s *Snake) draw() {
	var f field
	s.fill(&f)
	f.draw(s.disp)
}
