package rules

import (
	v "github.com/trezcool/tadris/core/validation"
)

var (
	genders            = []string{"male", "female"}
	weekdays           = []string{"saturday", "sunday", "monday", "tuesday", "wednesday", "thursday", "friday"}
	sessionStatuses    = []string{"scheduled", "completed", "cancelled"}
	attendanceStatuses = []string{"present", "absent", "late", "excused"}
)

const (
	timeLayout = "15:04"
	notesMax   = 1000
)

// unique returns a uniqueness predicate that ignores the updated record.
func unique(collection, column string, update bool) v.Predicate {
	if update {
		return v.UniqueIgnoring(collection, column, IDParam)
	}
	return v.Unique(collection, column)
}

func studentFields(update bool) []v.FieldConstraint {
	return []v.FieldConstraint{
		v.Field("name", "اسم الطالب", v.Required(), v.String(), v.Max(nameMaxLen), v.Tag("arabic_name")),
		v.Field("email", "البريد الإلكتروني", v.Nullable(), v.Email(), v.Max(nameMaxLen), unique("students", "email", update)),
		v.Field("phone", "رقم الهاتف", v.Nullable(), v.String(), v.Max(phoneMaxLen)),
		v.Field("parent_name", "اسم ولي الأمر", v.Nullable(), v.String(), v.Max(nameMaxLen)),
		v.Field("parent_phone", "هاتف ولي الأمر", v.Nullable(), v.String(), v.Max(phoneMaxLen)),
		v.Field("birth_date", "تاريخ الميلاد", v.Nullable(), v.Date(), v.Before("today")),
		v.Field("gender", "الجنس", v.Nullable(), v.In(genders...)),
		v.Field("grade_level", "المرحلة الدراسية", v.Nullable(), v.String(), v.Max(100)),
		v.Field("school", "المدرسة", v.Nullable(), v.String(), v.Max(nameMaxLen)),
		v.Field("group_id", "المجموعة", v.Nullable(), v.Integer(), v.Exists("groups", "id")),
		v.Field("address", "العنوان", v.Nullable(), v.String(), v.Max(500)),
		v.Field("notes", "الملاحظات", v.Nullable(), v.String(), v.Max(notesMax)),
		v.Field("is_active", "الحالة", v.Sometimes(), v.Boolean()),
	}
}

func studentRules() []v.RuleSet {
	return []v.RuleSet{
		{Operation: OpCreateStudent, Roles: staff, Fields: studentFields(false)},
		{Operation: OpUpdateStudent, Roles: staff, Fields: onUpdate(studentFields(true))},
	}
}

func groupFields(update bool) []v.FieldConstraint {
	return []v.FieldConstraint{
		v.Field("name", "اسم المجموعة", v.Required(), v.String(), v.Max(nameMaxLen), unique("groups", "name", update)),
		v.Field("subject", "المادة", v.Required(), v.String(), v.Max(nameMaxLen)),
		v.Field("description", "الوصف", v.Nullable(), v.String(), v.Max(notesMax)),
		v.Field("teacher_id", "المعلم", v.Nullable(), v.String(), v.Tag("uuid"), v.Exists("users", "id")),
		v.Field("grade_level", "المرحلة الدراسية", v.Nullable(), v.String(), v.Max(100)),
		v.Field("max_students", "الحد الأقصى للطلاب", v.Nullable(), v.Integer(), v.Min(1), v.Max(500)),
		v.Field("monthly_fee", "الرسوم الشهرية", v.Nullable(), v.Numeric(), v.Min(0)),
		v.Field("schedule", "الجدول", v.Nullable(), v.Array()),
		v.Field("schedule.*.day", "اليوم", v.Required(), v.In(weekdays...)),
		v.Field("schedule.*.starts_at", "وقت البداية", v.Required(), v.DateFormat(timeLayout)),
		v.Field("schedule.*.ends_at", "وقت النهاية", v.Required(), v.DateFormat(timeLayout)),
		v.Field("is_active", "الحالة", v.Sometimes(), v.Boolean()),
	}
}

func groupRules() []v.RuleSet {
	return []v.RuleSet{
		{Operation: OpCreateGroup, Roles: staff, Fields: groupFields(false)},
		{Operation: OpUpdateGroup, Roles: staff, Fields: onUpdate(groupFields(true))},
		{
			Operation: OpAssignStudents,
			Roles:     staff,
			Fields: []v.FieldConstraint{
				v.Field("student_ids", "الطلاب", v.Required(), v.Array(), v.Min(1)),
				v.Field("student_ids.*", "الطالب", v.Required(), v.Integer(), v.Exists("students", "id")),
			},
		},
	}
}

func sessionFields() []v.FieldConstraint {
	return []v.FieldConstraint{
		v.Field("group_id", "المجموعة", v.Required(), v.Integer(), v.Exists("groups", "id")),
		v.Field("title", "العنوان", v.Nullable(), v.String(), v.Max(nameMaxLen)),
		v.Field("date", "التاريخ", v.Required(), v.Date()),
		v.Field("starts_at", "وقت البداية", v.Required(), v.DateFormat(timeLayout)),
		v.Field("ends_at", "وقت النهاية", v.Required(), v.DateFormat(timeLayout), v.After("starts_at")),
		v.Field("status", "حالة الحصة", v.Sometimes(), v.In(sessionStatuses...)),
		v.Field("meeting_url", "رابط الحصة", v.Nullable(), v.URL()),
		v.Field("notes", "الملاحظات", v.Nullable(), v.String(), v.Max(notesMax)),
	}
}

func sessionRules() []v.RuleSet {
	return []v.RuleSet{
		{Operation: OpCreateSession, Roles: staff, Fields: sessionFields()},
		{Operation: OpUpdateSession, Roles: staff, Fields: onUpdate(sessionFields())},
	}
}

func attendanceRules() []v.RuleSet {
	return []v.RuleSet{
		{
			Operation: OpRecordAttendance,
			Roles:     staff,
			Fields: []v.FieldConstraint{
				v.Field("session_id", "الحصة", v.Required(), v.Integer(), v.Exists("sessions", "id")),
				v.Field("records", "سجلات الحضور", v.Required(), v.Array(), v.Min(1)),
				v.Field("records.*.student_id", "الطالب", v.Required(), v.Integer(), v.Exists("students", "id")),
				v.Field("records.*.status", "حالة الحضور", v.Required(), v.In(attendanceStatuses...)),
				v.Field("records.*.notes", "الملاحظات", v.Nullable(), v.String(), v.Max(500)),
			},
		},
		{
			Operation: OpUpdateAttendance,
			Roles:     staff,
			Fields: []v.FieldConstraint{
				v.Field("status", "حالة الحضور", v.Required(), v.In(attendanceStatuses...)),
				v.Field("notes", "الملاحظات", v.Nullable(), v.String(), v.Max(500)),
			},
		},
	}
}
