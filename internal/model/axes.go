package model

// RelAxis enumerates the relative axes rkvm understands. Values equal
// the kernel's EV_REL code so translation to and from a raw kernel
// event is a direct cast.
type RelAxis uint16

const (
	RelX         RelAxis = 0x00
	RelY         RelAxis = 0x01
	RelZ         RelAxis = 0x02
	RelRx        RelAxis = 0x03
	RelRy        RelAxis = 0x04
	RelRz        RelAxis = 0x05
	RelHWheel    RelAxis = 0x06
	RelDial      RelAxis = 0x07
	RelWheel     RelAxis = 0x08
	RelMisc      RelAxis = 0x09
	RelWheelHiRes  RelAxis = 0x0b
	RelHWheelHiRes RelAxis = 0x0c
)

// relAxisSet is the closed universe of relative axes rkvm forwards.
// RelWheel/RelHWheel's high-resolution siblings carry the same
// information and are forwarded instead; the low-resolution pair is
// dropped at translation time (see model doc on Translate).
var relAxisSet = map[RelAxis]struct{}{
	RelX: {}, RelY: {}, RelZ: {}, RelRx: {}, RelRy: {}, RelRz: {},
	RelDial: {}, RelMisc: {}, RelWheelHiRes: {}, RelHWheelHiRes: {},
}

// IsRelAxis reports whether code is one of the enumerated relative axes
// (excluding the dropped low-resolution wheel pair).
func IsRelAxis(code uint16) (RelAxis, bool) {
	axis := RelAxis(code)
	_, ok := relAxisSet[axis]
	return axis, ok
}

// AbsAxis enumerates the absolute axes rkvm understands, matching the
// kernel's EV_ABS code space.
type AbsAxis uint16

const (
	AbsX        AbsAxis = 0x00
	AbsY        AbsAxis = 0x01
	AbsZ        AbsAxis = 0x02
	AbsRx       AbsAxis = 0x03
	AbsRy       AbsAxis = 0x04
	AbsRz       AbsAxis = 0x05
	AbsThrottle AbsAxis = 0x06
	AbsRudder   AbsAxis = 0x07
	AbsWheel    AbsAxis = 0x08
	AbsGas      AbsAxis = 0x09
	AbsBrake    AbsAxis = 0x0a
	AbsHat0X    AbsAxis = 0x10
	AbsHat0Y    AbsAxis = 0x11
	AbsHat1X    AbsAxis = 0x12
	AbsHat1Y    AbsAxis = 0x13
	AbsHat2X    AbsAxis = 0x14
	AbsHat2Y    AbsAxis = 0x15
	AbsHat3X    AbsAxis = 0x16
	AbsHat3Y    AbsAxis = 0x17
	AbsPressure AbsAxis = 0x18
	AbsDistance AbsAxis = 0x19
	AbsTiltX    AbsAxis = 0x1a
	AbsTiltY    AbsAxis = 0x1b
	AbsToolWidth AbsAxis = 0x1c
	AbsVolume   AbsAxis = 0x20
	AbsMisc     AbsAxis = 0x28

	AbsMtSlot        AbsAxis = 0x2f
	AbsMtTouchMajor  AbsAxis = 0x30
	AbsMtTouchMinor  AbsAxis = 0x31
	AbsMtWidthMajor  AbsAxis = 0x32
	AbsMtWidthMinor  AbsAxis = 0x33
	AbsMtOrientation AbsAxis = 0x34
	AbsMtPositionX   AbsAxis = 0x35
	AbsMtPositionY   AbsAxis = 0x36
	AbsMtToolTypeAxis AbsAxis = 0x37
	AbsMtBlobID      AbsAxis = 0x38
	AbsMtTrackingID  AbsAxis = 0x39
	AbsMtPressure    AbsAxis = 0x3a
	AbsMtDistance    AbsAxis = 0x3b
	AbsMtOrientationX AbsAxis = 0x3c
	AbsMtToolY       AbsAxis = 0x3d
)

// absAxisSet is the closed universe of absolute axes rkvm forwards
// (spec.md §3: X..Misc, MtSlot..MtToolY). A code outside this set is
// write-back, like any other event the portable model has no slot for.
var absAxisSet = map[AbsAxis]struct{}{
	AbsX: {}, AbsY: {}, AbsZ: {}, AbsRx: {}, AbsRy: {}, AbsRz: {},
	AbsThrottle: {}, AbsRudder: {}, AbsWheel: {}, AbsGas: {}, AbsBrake: {},
	AbsHat0X: {}, AbsHat0Y: {}, AbsHat1X: {}, AbsHat1Y: {},
	AbsHat2X: {}, AbsHat2Y: {}, AbsHat3X: {}, AbsHat3Y: {},
	AbsPressure: {}, AbsDistance: {}, AbsTiltX: {}, AbsTiltY: {},
	AbsToolWidth: {}, AbsVolume: {}, AbsMisc: {},
	AbsMtSlot: {}, AbsMtTouchMajor: {}, AbsMtTouchMinor: {},
	AbsMtWidthMajor: {}, AbsMtWidthMinor: {}, AbsMtOrientation: {},
	AbsMtPositionX: {}, AbsMtPositionY: {}, AbsMtToolTypeAxis: {},
	AbsMtBlobID: {}, AbsMtTrackingID: {}, AbsMtPressure: {}, AbsMtDistance: {},
	AbsMtOrientationX: {}, AbsMtToolY: {},
}

// IsAbsAxis reports whether code is one of the enumerated absolute axes.
func IsAbsAxis(code uint16) (AbsAxis, bool) {
	axis := AbsAxis(code)
	_, ok := absAxisSet[axis]
	return axis, ok
}

// AbsInfo describes the kernel's ABS axis calibration, carried verbatim
// in a CreateDevice's capability set so a remote writer can reproduce
// the same range.
type AbsInfo struct {
	Min        int32
	Max        int32
	Fuzz       int32
	Flat       int32
	Resolution int32
}

// Sane reports whether the axis's advertised bounds are usable. An axis
// whose kernel driver reports Max < Min (and the two are not both zero,
// which some drivers use to mean "uncalibrated") is nonsensical and
// must be disabled on the interceptor before the first read.
func (a AbsInfo) Sane() bool {
	if a.Min == 0 && a.Max == 0 {
		return true
	}
	return a.Max >= a.Min
}
