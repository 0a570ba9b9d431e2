package validation

import (
	ut "github.com/go-playground/universal-translator"
)

// Message keys follow the predicate names; size predicates are suffixed by unit.
// {0} is the field label, {1} the predicate parameter.
var messages = map[string]string{
	"required":        "حقل {0} مطلوب.",
	"present":         "يجب تقديم حقل {0}.",
	"string":          "يجب أن يكون حقل {0} نصًا.",
	"integer":         "يجب أن يكون حقل {0} عددًا صحيحًا.",
	"numeric":         "يجب أن يكون حقل {0} رقمًا.",
	"boolean":         "يجب أن تكون قيمة حقل {0} إما صحيحة أو خاطئة.",
	"array":           "يجب أن يكون حقل {0} مصفوفة.",
	"date":            "حقل {0} ليس تاريخًا صالحًا.",
	"date_format":     "لا يتوافق حقل {0} مع الشكل {1}.",
	"email":           "يجب أن يكون حقل {0} عنوان بريد إلكتروني صالحًا.",
	"url":             "صيغة الرابط في حقل {0} غير صالحة.",
	"min.string":      "يجب أن يحتوي حقل {0} على {1} حرفًا على الأقل.",
	"min.numeric":     "يجب أن تكون قيمة حقل {0} مساوية أو أكبر من {1}.",
	"min.array":       "يجب أن يحتوي حقل {0} على {1} عنصرًا على الأقل.",
	"min.file":        "يجب أن يكون حجم الملف {0} على الأقل {1} كيلوبايت.",
	"max.string":      "يجب ألا يتجاوز طول حقل {0} {1} حرفًا.",
	"max.numeric":     "يجب أن تكون قيمة حقل {0} مساوية أو أصغر من {1}.",
	"max.array":       "يجب ألا يحتوي حقل {0} على أكثر من {1} عنصرًا.",
	"max.file":        "يجب ألا يتجاوز حجم الملف {0} {1} كيلوبايت.",
	"before":          "يجب أن يكون حقل {0} تاريخًا سابقًا لـ {1}.",
	"after":           "يجب أن يكون حقل {0} تاريخًا لاحقًا لـ {1}.",
	"before_or_equal": "يجب أن يكون حقل {0} تاريخًا سابقًا أو مطابقًا لـ {1}.",
	"after_or_equal":  "يجب أن يكون حقل {0} تاريخًا لاحقًا أو مطابقًا لـ {1}.",
	"in":              "القيمة المختارة في حقل {0} غير صالحة.",
	"confirmed":       "حقل التأكيد غير مطابق لحقل {0}.",
	"regex":           "صيغة حقل {0} غير صالحة.",
	"file":            "يجب أن يكون حقل {0} ملفًا.",
	"mimes":           "يجب أن يكون حقل {0} ملفًا من نوع: {1}.",
	"unique":          "قيمة حقل {0} مستخدمة من قبل.",
	"exists":          "القيمة المحددة في حقل {0} غير موجودة.",
	"e164":            "يجب أن يكون حقل {0} رقم هاتف دوليًا صالحًا.",
	"uuid":            "يجب أن يكون حقل {0} معرفًا صالحًا.",
	"invalid":         "قيمة حقل {0} غير صالحة.",
}

// Arabic names of the relative dates accepted by before/after.
var refLabels = map[string]string{
	"today":     "اليوم",
	"now":       "الآن",
	"tomorrow":  "الغد",
	"yesterday": "الأمس",
}

// RegisterMessages adds the validation messages to t without overriding existing keys.
func RegisterMessages(t ut.Translator) error {
	for key, text := range messages {
		if err := t.Add(key, text, false); err != nil {
			if _, ok := err.(*ut.ErrConflictingTranslation); ok {
				continue
			}
			return err
		}
	}
	return nil
}
