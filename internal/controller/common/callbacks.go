package common

// Префиксы callback data. Telegram ограничивает data 64 байтами,
// поэтому в кнопку кладём не больше двух идентификаторов.
const (
	CallbackRegister      = "reg:"            // reg:<role>
	CallbackDoctors       = "doctors"         // список специалистов
	CallbackDoctor        = "doc:"            // doc:<ownerID>
	CallbackDate          = "date:"           // date:<ownerID>:<YYYY-MM-DD>
	CallbackClaim         = "claim:"          // claim:<slotID>
	CallbackCancelBooking = "cancel_booking:" // cancel_booking:<ownerID>
	CallbackMySlots       = "myslots"         // журнал специалиста
	CallbackWithdraw      = "withdraw:"       // withdraw:<slotID>
	CallbackRelease       = "release:"        // release:<slotID>
	CallbackBackToMain    = "back_to_main"
)

// MaxCallbackData - лимит Telegram на callback data
const MaxCallbackData = 64
