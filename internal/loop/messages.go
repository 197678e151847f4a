package loop

// Advisory codes published to the speaker topic. The leading digit is a
// display-ordering tag consumed by the downstream announcer; the core never
// parses it back.
const (
	MsgMaskDetected        = "1MaskWasDetected"
	MsgPersonRecognized    = "2PersonWasRecognized"
	MsgPutMaskOn           = "3PutMaskOn"
	MsgMaskNotDetected     = "4MaskWasNotDetected"
	MsgWelcome             = "5Welcome"
	MsgUnknownPerson       = "6UnknownPerson"
	MsgTempTooHigh         = "7TempIsGreater"
	MsgTakeTemperature     = "8TakeTempSens"
	MsgAppointmentRequired = "9Appointment"
	MsgOutsideHours        = "10Time"
)

// DoorOpenPayload is the sentinel published to the door topic.
const DoorOpenPayload = "1"
