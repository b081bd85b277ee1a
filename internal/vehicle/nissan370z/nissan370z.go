// Package nissan370z decodes the Nissan 370Z high-speed CAN bus.
//
// Every decoder receives a frame whose payload length already matches its
// registration. Byte indices below are 0-based.
package nissan370z

import (
	"carhack/internal/decoder"
	"carhack/internal/frame"
	"carhack/internal/signal"
)

// Name is the catalogue key for this vehicle.
const Name = "nissan_370z"

// Sentinel decoded values.
const (
	Unknown = 255 // unmapped forward byte enum
	Reverse = -1  // 6mt reverse gear
	Neutral = 0
)

// bit locates a single flag: the payload byte and the mask applied to it.
type bit struct {
	Byte int
	Mask byte
}

func (b bit) of(data []byte) int { return signal.Flag(data[b.Byte] & b.Mask) }

// Flag positions.
var (
	acIndicator          = bit{1, 0x08} // 0x215
	clutchPedalToFloorA  = bit{0, 0x08} // 0x216
	clutchPedalPressed   = bit{7, 0x04} // 0x351
	tcsIndicator         = bit{4, 0x80} // 0x354
	brakeLight           = bit{6, 0x10} // 0x354
	parkingBrake         = bit{0, 0x04} // 0x5c5
	headlights           = bit{0, 0x02} // 0x60d
	runningLights        = bit{0, 0x04}
	driverDoorOpen       = bit{0, 0x10}
	passengerDoorOpen    = bit{0, 0x20}
	leftTurnSignal       = bit{1, 0x20}
	rightTurnSignal      = bit{1, 0x40}
	driverDoorLocked     = bit{2, 0x08}
	carLocked            = bit{2, 0x10}
	cruiseMasterSwitch   = bit{5, 0x50} // 0x551, not published
	cruiseEngagedInverse = bit{5, 0x10} // 0x551, not published
)

// 0x35d byte 4 takes exactly one of these when the car reports motion.
const (
	motionMoving  = 0x40
	motionStopped = 0x10
)

var wiperStatus = map[byte]int{
	0:   0, // off
	64:  1, // intermittent
	192: 2, // low
	224: 3, // high
}

var gear = map[byte]int{
	24:  Neutral,
	128: 1,
	136: 2,
	144: 3,
	152: 4,
	160: 5,
	168: 6,
	16:  Reverse,
}

var cruiseControlStatus = map[byte]int{
	2:  0, // off
	82: 1, // on, not set
	66: 2, // set
}

var cruiseControlSpeed = map[byte]int{
	255: -1, // no set speed
	254: 0,
}

// Registrations is the full decoder table for the 370Z.
func Registrations() []decoder.Registration {
	return []decoder.Registration{
		{ID: 0x002, Length: 5, Signals: []string{"steering_position"}, Decode: decode002},
		{ID: 0x180, Length: 8, Signals: []string{"rpm_a", "throttle_pedal_position"}, Decode: decode180},
		{ID: 0x1f9, Length: 8, Signals: []string{"rpm_b"}, Decode: decode1f9},
		{ID: 0x215, Length: 6, Signals: []string{"ac_indicator"}, Decode: decode215},
		{ID: 0x216, Length: 2, Signals: []string{"clutch_pedal_to_floor_a"}, Decode: decode216},
		{ID: 0x280, Length: 8, Signals: []string{"vehicle_speed"}, Decode: decode280},
		{ID: 0x351, Length: 8, Signals: []string{"clutch_pedal_pressed"}, Decode: decode351},
		{ID: 0x354, Length: 8, Signals: []string{"tcs_indicator", "brake_light"}, Decode: decode354},
		{ID: 0x35d, Length: 8, Signals: []string{"wiper_status", "car_moving", "car_stopped"}, Decode: decode35d},
		{ID: 0x421, Length: 2, Signals: []string{"6mt"}, Decode: decode421},
		{ID: 0x551, Length: 8, Signals: []string{"temp_sensor_a", "engine_revolutions", "cruise_control_status", "cruise_control_speed"}, Decode: decode551},
		{ID: 0x580, Length: 5, Signals: []string{"throtle_body_position"}, Decode: decode580},
		{ID: 0x5c5, Length: 8, Signals: []string{"parking_brake_indicator"}, Decode: decode5c5},
		{ID: 0x60d, Length: 8, Signals: []string{
			"headlights", "running_lights", "driver_door_open", "passenger_door_open",
			"left_turn_signal", "right_turn_signal", "driver_door_locked", "car_locked",
		}, Decode: decode60d},
	}
}

// Registry returns the 370Z registry. The table is static, so a
// construction error is a programming error.
func Registry() *decoder.Registry {
	return decoder.MustRegistry(Registrations()...)
}

func decode002(f frame.Frame) []signal.Signal {
	// operand order is (byte1, byte0)
	return []signal.Signal{
		signal.New("steering_position", f.Timestamp, signal.Signed16(f.Data[1], f.Data[0])),
	}
}

func decode180(f frame.Frame) []signal.Signal {
	return []signal.Signal{
		signal.New("rpm_a", f.Timestamp, signal.Unsigned16(f.Data[0], f.Data[1])),
		signal.New("throttle_pedal_position", f.Timestamp, signal.Percent(f.Data[5])),
	}
}

func decode1f9(f frame.Frame) []signal.Signal {
	return []signal.Signal{
		signal.New("rpm_b", f.Timestamp, signal.Unsigned16(f.Data[2], f.Data[3])),
	}
}

func decode215(f frame.Frame) []signal.Signal {
	return []signal.Signal{
		signal.New("ac_indicator", f.Timestamp, acIndicator.of(f.Data)),
	}
}

func decode216(f frame.Frame) []signal.Signal {
	return []signal.Signal{
		signal.New("clutch_pedal_to_floor_a", f.Timestamp, clutchPedalToFloorA.of(f.Data)),
	}
}

func decode280(f frame.Frame) []signal.Signal {
	return []signal.Signal{
		signal.New("vehicle_speed", f.Timestamp, float64(signal.Unsigned16(f.Data[4], f.Data[5]))/100.0),
	}
}

func decode351(f frame.Frame) []signal.Signal {
	return []signal.Signal{
		signal.New("clutch_pedal_pressed", f.Timestamp, clutchPedalPressed.of(f.Data)),
	}
}

func decode354(f frame.Frame) []signal.Signal {
	return []signal.Signal{
		signal.New("tcs_indicator", f.Timestamp, tcsIndicator.of(f.Data)),
		signal.New("brake_light", f.Timestamp, brakeLight.of(f.Data)),
	}
}

func decode35d(f frame.Frame) []signal.Signal {
	return []signal.Signal{
		signal.New("wiper_status", f.Timestamp, signal.Lookup(wiperStatus, f.Data[2], Unknown)),
		signal.New("car_moving", f.Timestamp, signal.FlagIf(f.Data[4] == motionMoving)),
		signal.New("car_stopped", f.Timestamp, signal.FlagIf(f.Data[4] == motionStopped)),
	}
}

func decode421(f frame.Frame) []signal.Signal {
	return []signal.Signal{
		signal.New("6mt", f.Timestamp, signal.Lookup(gear, f.Data[0], Unknown)),
	}
}

func decode551(f frame.Frame) []signal.Signal {
	status, speed := f.Data[5], f.Data[4]
	return []signal.Signal{
		signal.New("temp_sensor_a", f.Timestamp, int(f.Data[0])),
		signal.New("engine_revolutions", f.Timestamp, int(f.Data[1])),
		signal.New("cruise_control_status", f.Timestamp, signal.Lookup(cruiseControlStatus, status, int(status))),
		signal.New("cruise_control_speed", f.Timestamp, signal.Lookup(cruiseControlSpeed, speed, int(speed))),
	}
}

// cruiseControlState derives the master switch and engaged bits from 0x551
// byte 5. They are not published until a consumer needs them.
func cruiseControlState(data []byte) (masterSwitch, engaged int) {
	masterSwitch = cruiseMasterSwitch.of(data)
	engaged = signal.FlagIf(masterSwitch == 1 && cruiseEngagedInverse.of(data) == 0)
	return masterSwitch, engaged
}

func decode580(f frame.Frame) []signal.Signal {
	return []signal.Signal{
		signal.New("throtle_body_position", f.Timestamp, signal.Unsigned16(f.Data[0], f.Data[1])),
	}
}

func decode5c5(f frame.Frame) []signal.Signal {
	return []signal.Signal{
		signal.New("parking_brake_indicator", f.Timestamp, parkingBrake.of(f.Data)),
	}
}

func decode60d(f frame.Frame) []signal.Signal {
	ts, d := f.Timestamp, f.Data
	return []signal.Signal{
		signal.New("headlights", ts, headlights.of(d)),
		signal.New("running_lights", ts, runningLights.of(d)),
		signal.New("driver_door_open", ts, driverDoorOpen.of(d)),
		signal.New("passenger_door_open", ts, passengerDoorOpen.of(d)),
		signal.New("left_turn_signal", ts, leftTurnSignal.of(d)),
		signal.New("right_turn_signal", ts, rightTurnSignal.of(d)),
		signal.New("driver_door_locked", ts, driverDoorLocked.of(d)),
		signal.New("car_locked", ts, carLocked.of(d)),
	}
}
