package controller

import (
	"sidcontrol/internal/trigger"
)

// Tick advances everything by one loop iteration. now is in milliseconds and
// must not go backwards.
func (c *Controller) Tick(now int64) {
	if !c.booted {
		c.boot(now)
	}

	c.followLink(now)

	st := trigger.Status{
		SessionActive: c.eng.Active(),
		ScreenSaver:   c.saver,
		Spectrum:      c.mode == ModeSpectrum,
		Game:          c.inGame(),
		PowerOff:      !c.powerOn,
	}
	for _, act := range c.agg.Tick(now, st) {
		c.apply(now, act)
	}
	if c.agg.Learning() {
		c.lastAct = now
	}

	c.play(now)
	c.saveIfDue(now)

	if c.link != nil {
		for _, n := range c.link.Poll(now) {
			c.agg.Push(trigger.Notification{Command: n.Command, LeadMs: n.LeadMs})
		}
	}
}

func (c *Controller) boot(now int64) {
	c.booted = true
	if c.opts.FollowFakePower && c.opts.WaitForFakePowerOn && c.link != nil {
		c.fakePowerOff = true
		c.disp.Off()
		c.logger.Info("waiting for peer power on")
		return
	}
	c.powerOn = true
	c.lastAct = now
	c.seq = startupSequence(c.disp, c.gen)
}

// play runs whichever activity owns the panel this tick.
func (c *Controller) play(now int64) {
	if !c.powerOn {
		return
	}

	if c.seq != nil {
		if c.seq.tick(now) {
			return
		}
		c.seq = nil
	}

	if c.eng.Active() {
		c.eng.Tick(now)
		if !c.eng.Active() {
			c.lastAct = now
		}
		return
	}

	switch c.mode {
	case ModeSpectrum:
		c.sa.Tick(now)
		return
	case ModeGameA, ModeGameB:
		c.game().Tick(now)
		return
	}

	if c.agg.Learning() {
		return
	}
	if c.alarm {
		c.alarm = false
		c.startSequence(now, wordSequence(c.disp, c.gen, "ALARM", speedAlarm))
		return
	}
	if !c.saver && c.saverDelay > 0 && now-c.lastAct > c.saverDelay {
		c.startSaver()
	}
	c.gen.Step(now, false)
}

func (c *Controller) startSequence(now int64, s *sequence) {
	c.seq = s
	c.seq.next = now
	if !c.seq.tick(now) {
		c.seq = nil
	}
}

// stopSequence abandons a running sequence and leaves a blank panel at the
// configured brightness.
func (c *Controller) stopSequence() {
	if c.seq == nil {
		return
	}
	c.seq = nil
	c.disp.Clear()
	c.disp.Show()
	c.disp.RestoreBrightness()
}

// ============================================================================
// Actions
// ============================================================================

func (c *Controller) apply(now int64, act trigger.Action) {
	switch a := act.(type) {
	case trigger.StartTravel:
		c.endSaver(now)
		if c.inGame() {
			c.stopGame()
		}
		c.stopSequence()
		c.eng.Start(now, a.Origin, a.Sync, a.LeadMs)

	case trigger.TriggerDropped:
		if c.hooks.OnDropped != nil {
			c.hooks.OnDropped(a.Origin, a.Reason)
		}

	case trigger.EndScreenSaver:
		c.endSaver(now)

	case trigger.RefreshActivity:
		c.lastAct = now

	case trigger.Indicator:
		c.disp.SetIndicator(a.On)

	case trigger.StartLearning:
		c.leaveMode()
		c.startSequence(now, wordSequence(c.disp, c.gen, "GO", speedGo).
			then(charSequence(c.disp, trigger.Key0.Label())))

	case trigger.LearningNext:
		c.startSequence(now, charSequence(c.disp, a.Key.Label()))

	case trigger.LearningFinished:
		c.state.LearnedKeys = a.Codes
		c.saveNow()
		s := &sequence{name: "done"}
		addFadeOut(s, c.disp)
		c.startSequence(now, s.then(wordSequence(c.disp, c.gen, "DONE", speedDone)))

	case trigger.LearningEnded:
		c.stopSequence()
		c.gen.Kick()

	case trigger.SetIdleMode:
		c.gen.SetMode(a.Mode)
		c.gen.Kick()
		c.state.IdleMode = c.gen.Mode()
		c.markDirty(now)

	case trigger.SwitchMode:
		c.switchMode(now, a.Mode)

	case trigger.AdjustBrightness:
		old := c.disp.Brightness()
		lvl := c.disp.SetBrightness(old + a.Delta)
		if lvl != old {
			c.state.Brightness = lvl
			c.markDirty(now)
		}

	case trigger.GameKey:
		if c.inGame() {
			c.game().Input(a.Key)
		}

	case trigger.GameQuit:
		if c.inGame() {
			c.stopGame()
		}

	case trigger.TogglePeaks:
		if c.sa == nil {
			return
		}
		c.sa.SetPeaks(!c.sa.Peaks())
		c.state.Peaks = c.sa.Peaks()
		c.markDirty(now)

	case trigger.SetIRLock:
		c.state.IRLocked = a.Locked
		c.markDirty(now)

	case trigger.ShowIP:
		ip := "0.0.0.0"
		if c.hooks.IPAddress != nil {
			if s := c.hooks.IPAddress(); s != "" {
				ip = s
			}
		}
		c.leaveMode()
		c.startSequence(now, wordSequence(c.disp, c.gen, ip, speedIP))

	case trigger.ClearLearnedKeys:
		c.state.LearnedKeys = [trigger.NumKeys]uint32{}
		c.saveNow()

	case trigger.Restart:
		c.logger.Info("restart requested from remote")
		if c.hooks.OnRestart != nil {
			c.hooks.OnRestart()
		}

	case trigger.BadInput:
		c.logger.Debug("bad remote input", "input", a.Input)

	case trigger.Prepare:
		c.endSaver(now)
		if c.inGame() {
			c.stopGame()
		}

	case trigger.Alarm:
		c.alarm = true

	case trigger.Reentry:
		c.eng.Reentry()

	case trigger.Abort:
		c.eng.Abort()

	default:
		c.logger.Warn("unhandled action", "action", act.String())
	}
}

// ============================================================================
// Modes
// ============================================================================

func (c *Controller) inGame() bool {
	return c.mode == ModeGameA || c.mode == ModeGameB
}

func (c *Controller) game() Game {
	return c.games[c.mode-ModeGameA]
}

func (c *Controller) switchMode(now int64, m trigger.ModeRequest) {
	switch m {
	case trigger.ModeIdle:
		c.leaveMode()

	case trigger.ModeSpectrum:
		if c.sa == nil {
			c.logger.Info("spectrum mode unavailable")
			return
		}
		c.leaveMode()
		c.startSpectrum()

	case trigger.ModeGameA, trigger.ModeGameB:
		mode, g := ModeGameA, c.games[0]
		if m == trigger.ModeGameB {
			mode, g = ModeGameB, c.games[1]
		}
		if g == nil {
			c.logger.Info("game unavailable", "mode", mode.String())
			return
		}
		c.leaveMode()
		c.mode = mode
		c.startSequence(now, wordSequence(c.disp, c.gen, g.Title(), speedTitle))
		g.Start(now)
	}
	c.logger.Info("mode changed", "mode", c.mode.String())
}

func (c *Controller) startSpectrum() {
	c.mode = ModeSpectrum
	c.sa.Activate()
}

// leaveMode returns to the idle animation.
func (c *Controller) leaveMode() {
	switch c.mode {
	case ModeSpectrum:
		c.sa.Deactivate()
	case ModeGameA, ModeGameB:
		c.game().Stop()
	}
	c.mode = ModeIdle
	c.gen.Kick()
}

func (c *Controller) stopGame() {
	c.leaveMode()
	c.stopSequence()
}

// ============================================================================
// Screen saver
// ============================================================================

func (c *Controller) startSaver() {
	if c.saver {
		return
	}
	c.disp.Off()
	c.saver = true
	c.logger.Debug("screen saver on")
}

func (c *Controller) endSaver(now int64) {
	if !c.powerOn {
		return
	}
	c.lastAct = now
	if !c.saver {
		return
	}
	c.disp.On()
	c.saver = false
	c.logger.Debug("screen saver off")
}

// ============================================================================
// Peer state
// ============================================================================

func (c *Controller) followLink(now int64) {
	if c.link == nil {
		return
	}
	ls := c.link.Link()
	if ls.Updates == c.linkUpdates {
		return
	}
	c.linkUpdates = ls.Updates

	if c.linkInbound != 0 && ls.LastInbound == 0 {
		c.eng.LinkLost()
	}
	c.linkInbound = ls.LastInbound

	c.gen.SetPeerSpeed(ls.Speed)

	if c.opts.FollowFakePower && ls.FakePowerOff != c.fakePowerOff {
		c.fakePowerOff = ls.FakePowerOff
		if ls.FakePowerOff {
			c.powerDown(now)
		} else {
			c.powerUp(now)
		}
	}

	if c.opts.FollowNightMode && ls.NightMode != c.nightMode {
		c.nightMode = ls.NightMode
		if ls.NightMode {
			c.saverDelay = nightModeSaverMs
		} else {
			c.endSaver(now)
			c.saverDelay = c.saverConfig
		}
		c.logger.Info("peer night mode", "on", ls.NightMode)
	}
}

func (c *Controller) powerDown(now int64) {
	if !c.powerOn {
		return
	}
	c.logger.Info("peer fake power off")
	c.eng.Cancel(now)
	c.agg.StopLearning()
	c.spectrumAtOff = c.mode == ModeSpectrum
	c.leaveMode()
	c.seq = nil
	c.alarm = false
	c.disp.SetIndicator(false)
	c.disp.Off()
	c.powerOn = false
}

func (c *Controller) powerUp(now int64) {
	if c.powerOn {
		return
	}
	c.logger.Info("peer fake power on")
	c.powerOn = true
	c.saver = false
	c.lastAct = now
	c.agg.Reset()

	c.disp.Clear()
	c.disp.Show()
	c.disp.RestoreBrightness()
	c.disp.On()

	c.gen.SetBaseline(0)
	c.gen.ResetText()
	c.startSequence(now, startupSequence(c.disp, c.gen))

	if c.spectrumAtOff && c.sa != nil {
		c.startSpectrum()
	}
	c.spectrumAtOff = false
}

// ============================================================================
// Persistence
// ============================================================================

func (c *Controller) markDirty(now int64) {
	c.dirty = true
	c.dirtyAt = now
}

// saveIfDue writes debounced changes once they have settled and no time
// travel is running.
func (c *Controller) saveIfDue(now int64) {
	if !c.dirty || c.eng.Active() || now-c.dirtyAt <= saveDelayMs {
		return
	}
	c.saveNow()
}

// Flush writes unsaved settings immediately. The daemon calls it on shutdown.
func (c *Controller) Flush() {
	if c.dirty {
		c.saveNow()
	}
}

func (c *Controller) saveNow() {
	c.dirty = false
	if c.store == nil {
		return
	}
	if err := c.store.Save(c.state); err != nil {
		c.logger.Warn("saving settings failed", "error", err)
	}
}
