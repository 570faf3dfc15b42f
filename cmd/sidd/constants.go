package main

// Linux input event types and codes (from <linux/input.h>)
const (
	EV_KEY = 0x01
	EV_MSC = 0x04

	MSC_SCAN = 0x04

	KEY_1             = 2
	KEY_9             = 10
	KEY_0             = 11
	KEY_UP            = 103
	KEY_LEFT          = 105
	KEY_RIGHT         = 106
	KEY_DOWN          = 108
	KEY_OK            = 352
	KEY_NUMERIC_0     = 512
	KEY_NUMERIC_9     = 521
	KEY_NUMERIC_STAR  = 522
	KEY_NUMERIC_POUND = 523

	BTN_0 = 0x100

	KEY_MAX = 0x2ff
)

// Input event value constants
const (
	evValueRelease = 0
	evValuePress   = 1
	evValueRepeat  = 2
)

const (
	defaultTickMS = 5

	// Queue between the input goroutines and the tick loop.
	eventQueueSize = 64
	// Queue between the tick loop and the websocket broadcaster.
	broadcastQueueSize = 256
)
