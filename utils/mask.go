package utils

const maskedPrefix = "**** **** **** "

// MaskCardNumber скрывает все цифры номера карты, кроме последних четырех.
// Строки короче четырех символов возвращаются без изменений.
func MaskCardNumber(number string) string {
	if len(number) < 4 {
		return number
	}
	return maskedPrefix + number[len(number)-4:]
}
