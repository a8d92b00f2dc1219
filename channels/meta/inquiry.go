package meta

import "strings"

// productKeywords are the inquiry markers scanned in public comments, in
// Uzbek, Russian, and English.
var productKeywords = []string{
	"narx", "price", "qancha", "how much", "стоимость", "цена", "сколько",
	"sotib", "buy", "купить", "order", "zakaz", "заказ",
	"mavjud", "available", "есть ли", "bor mi", "bormi",
	"qayerda", "where", "где",
	"yetkazib", "deliver", "доставка", "доставите",
	"chegirma", "discount", "скидка", "aksiya", "акция",
	"mahsulot", "product", "товар", "tovar",
	"katalog", "catalog", "каталог",
	"model", "razmer", "size", "rang", "color", "цвет", "размер",
}

// IsProductInquiry reports whether a public comment looks like a purchase
// question worth converting to a DM conversation.
func IsProductInquiry(text string) bool {
	if strings.Contains(text, "?") {
		return true
	}
	lower := strings.ToLower(text)
	for _, kw := range productKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}
