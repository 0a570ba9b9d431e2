package rules

import (
	v "github.com/trezcool/tadris/core/validation"
)

var (
	paymentMethods   = []string{"cash", "bank_transfer", "card", "wallet"}
	paymentStatuses  = []string{"paid", "pending", "refunded"}
	audiences        = []string{"all", "students", "parents", "teachers", "group"}
	channels         = []string{"database", "email"}
	reportTypes      = []string{"attendance", "payments", "students", "exams"}
	reportFormats    = []string{"pdf", "xlsx", "csv"}
	uploadMimes      = []string{"jpg", "jpeg", "png", "webp", "pdf", "doc", "docx"}
	uploadFolders    = []string{"avatars", "documents", "attachments"}
	uploadMaxSizeKB  = 10240.0
	announcementBody = 5000.0
)

func paymentFields(update bool) []v.FieldConstraint {
	return []v.FieldConstraint{
		v.Field("student_id", "الطالب", v.Required(), v.Integer(), v.Exists("students", "id")),
		v.Field("group_id", "المجموعة", v.Nullable(), v.Integer(), v.Exists("groups", "id")),
		v.Field("amount", "المبلغ", v.Required(), v.Numeric(), v.Min(0)),
		v.Field("paid_at", "تاريخ الدفع", v.Required(), v.Date(), v.BeforeOrEqual("tomorrow")),
		v.Field("month", "الشهر", v.Required(), v.DateFormat("2006-01")),
		v.Field("method", "طريقة الدفع", v.Required(), v.In(paymentMethods...)),
		v.Field("status", "حالة الدفع", v.Sometimes(), v.In(paymentStatuses...)),
		v.Field("reference", "رقم الإيصال", v.Nullable(), v.String(), v.Max(100), unique("payments", "reference", update)),
		v.Field("notes", "الملاحظات", v.Nullable(), v.String(), v.Max(notesMax)),
	}
}

func paymentRules() []v.RuleSet {
	return []v.RuleSet{
		{Operation: OpCreatePayment, Roles: admins, Fields: paymentFields(false)},
		{Operation: OpUpdatePayment, Roles: admins, Fields: onUpdate(paymentFields(true))},
	}
}

func announcementFields() []v.FieldConstraint {
	return []v.FieldConstraint{
		v.Field("title", "العنوان", v.Required(), v.String(), v.Max(nameMaxLen)),
		v.Field("body", "المحتوى", v.Required(), v.String(), v.Max(announcementBody)),
		v.Field("audience", "الفئة المستهدفة", v.Required(), v.In(audiences...)),
		v.Field("group_id", "المجموعة", v.Nullable(), v.Integer(), v.Exists("groups", "id")),
		v.Field("published_at", "تاريخ النشر", v.Nullable(), v.Date()),
		v.Field("expires_at", "تاريخ الانتهاء", v.Nullable(), v.Date(), v.After("published_at")),
		v.Field("is_pinned", "التثبيت", v.Sometimes(), v.Boolean()),
	}
}

func announcementRules() []v.RuleSet {
	return []v.RuleSet{
		{Operation: OpCreateAnnouncement, Roles: staff, Fields: announcementFields()},
		{Operation: OpUpdateAnnouncement, Roles: staff, Fields: onUpdate(announcementFields())},
	}
}

func notificationRules() v.RuleSet {
	return v.RuleSet{
		Operation: OpSendNotification,
		Roles:     staff,
		Fields: []v.FieldConstraint{
			v.Field("title", "العنوان", v.Required(), v.String(), v.Max(nameMaxLen)),
			v.Field("body", "المحتوى", v.Required(), v.String(), v.Max(notesMax)),
			v.Field("channel", "قناة الإرسال", v.Required(), v.In(channels...)),
			v.Field("recipient_ids", "المستلمون", v.Required(), v.Array(), v.Min(1)),
			v.Field("recipient_ids.*", "المستلم", v.Required(), v.String(), v.Tag("uuid"), v.Exists("users", "id")),
		},
	}
}

func reportRules() v.RuleSet {
	return v.RuleSet{
		Operation: OpExportReport,
		Roles:     staff,
		Fields: []v.FieldConstraint{
			v.Field("type", "نوع التقرير", v.Required(), v.In(reportTypes...)),
			v.Field("format", "صيغة الملف", v.Required(), v.In(reportFormats...)),
			v.Field("from", "من تاريخ", v.Required(), v.Date()),
			v.Field("to", "إلى تاريخ", v.Required(), v.Date(), v.AfterOrEqual("from")),
			v.Field("group_id", "المجموعة", v.Nullable(), v.Integer(), v.Exists("groups", "id")),
		},
	}
}

func uploadRules() v.RuleSet {
	return v.RuleSet{
		Operation: OpUploadFile,
		Roles:     members,
		Fields: []v.FieldConstraint{
			v.Field("file", "الملف", v.Required(), v.File(), v.Mimes(uploadMimes...), v.Max(uploadMaxSizeKB)),
			v.Field("folder", "المجلد", v.Nullable(), v.In(uploadFolders...)),
		},
	}
}
