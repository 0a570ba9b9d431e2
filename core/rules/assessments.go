package rules

import (
	"github.com/trezcool/tadris/core/user"
	v "github.com/trezcool/tadris/core/validation"
)

var questionTypes = []string{"multiple_choice", "true_false", "short_answer"}

func quizFields() []v.FieldConstraint {
	return []v.FieldConstraint{
		v.Field("group_id", "المجموعة", v.Required(), v.Integer(), v.Exists("groups", "id")),
		v.Field("title", "عنوان الاختبار", v.Required(), v.String(), v.Max(nameMaxLen)),
		v.Field("description", "الوصف", v.Nullable(), v.String(), v.Max(notesMax)),
		v.Field("duration_minutes", "المدة بالدقائق", v.Required(), v.Integer(), v.Min(1), v.Max(300)),
		v.Field("starts_at", "موعد البداية", v.Required(), v.Date()),
		v.Field("ends_at", "موعد النهاية", v.Required(), v.Date(), v.After("starts_at")),
		v.Field("total_marks", "الدرجة الكلية", v.Required(), v.Numeric(), v.Min(1)),
		v.Field("is_published", "النشر", v.Sometimes(), v.Boolean()),
		v.Field("questions", "الأسئلة", v.Required(), v.Array(), v.Min(1)),
		v.Field("questions.*.text", "نص السؤال", v.Required(), v.String(), v.Max(notesMax)),
		v.Field("questions.*.type", "نوع السؤال", v.Required(), v.In(questionTypes...)),
		v.Field("questions.*.options", "الخيارات", v.Nullable(), v.Array()),
		v.Field("questions.*.answer", "الإجابة الصحيحة", v.Required(), v.String(), v.Max(notesMax)),
		v.Field("questions.*.marks", "درجة السؤال", v.Required(), v.Numeric(), v.Min(0)),
	}
}

func quizRules() []v.RuleSet {
	return []v.RuleSet{
		{Operation: OpCreateQuiz, Roles: staff, Fields: quizFields()},
		{Operation: OpUpdateQuiz, Roles: staff, Fields: onUpdate(quizFields())},
		{
			Operation: OpSubmitQuiz,
			Roles:     []string{user.RoleStudent},
			Fields: []v.FieldConstraint{
				v.Field("answers", "الإجابات", v.Required(), v.Array()),
				v.Field("answers.*.question_id", "السؤال", v.Required(), v.Integer(), v.Exists("quiz_questions", "id")),
				v.Field("answers.*.answer", "الإجابة", v.Nullable(), v.String(), v.Max(2000)),
			},
		},
	}
}

func examFields() []v.FieldConstraint {
	return []v.FieldConstraint{
		v.Field("group_id", "المجموعة", v.Required(), v.Integer(), v.Exists("groups", "id")),
		v.Field("title", "عنوان الامتحان", v.Required(), v.String(), v.Max(nameMaxLen)),
		v.Field("exam_date", "تاريخ الامتحان", v.Required(), v.Date()),
		v.Field("total_marks", "الدرجة الكلية", v.Required(), v.Numeric(), v.Min(1)),
		v.Field("passing_marks", "درجة النجاح", v.Nullable(), v.Numeric(), v.Min(0)),
		v.Field("notes", "الملاحظات", v.Nullable(), v.String(), v.Max(notesMax)),
	}
}

func examRules() []v.RuleSet {
	return []v.RuleSet{
		{Operation: OpCreateExam, Roles: staff, Fields: examFields()},
		{Operation: OpUpdateExam, Roles: staff, Fields: onUpdate(examFields())},
		{
			Operation: OpRecordExamResult,
			Roles:     staff,
			Fields: []v.FieldConstraint{
				v.Field("student_id", "الطالب", v.Required(), v.Integer(), v.Exists("students", "id")),
				v.Field("marks", "الدرجة", v.Required(), v.Numeric(), v.Min(0)),
				v.Field("grade", "التقدير", v.Nullable(), v.String(), v.Max(5)),
				v.Field("notes", "الملاحظات", v.Nullable(), v.String(), v.Max(notesMax)),
			},
		},
	}
}
