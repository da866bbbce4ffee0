// Package aigov governs AI processing of personal data: per-feature opt-out,
// consent-backed processing, disclaimers on every AI output, and an audit
// entry for every run.
package aigov

import "github.com/mysehat/consent/internal/domain/consent"

// Feature names an AI capability subject to governance. Closed set.
type Feature string

const (
	FeatureSymptomChecker        Feature = "symptom_checker"
	FeatureMentalHealthChat      Feature = "mental_health_chat"
	FeatureDocumentAnalysis      Feature = "document_analysis"
	FeatureHealthInsights        Feature = "health_insights"
	FeatureMedicationInteraction Feature = "medication_interaction"
)

// Features lists every governed feature in a stable order.
func Features() []Feature {
	return []Feature{
		FeatureSymptomChecker,
		FeatureMentalHealthChat,
		FeatureDocumentAnalysis,
		FeatureHealthInsights,
		FeatureMedicationInteraction,
	}
}

var featureCategories = map[Feature]consent.DataCategory{
	FeatureSymptomChecker:        consent.CategoryDiagnostics,
	FeatureMentalHealthChat:      consent.CategoryMentalHealth,
	FeatureDocumentAnalysis:      consent.CategoryDocuments,
	FeatureHealthInsights:        consent.CategoryHealthRecords,
	FeatureMedicationInteraction: consent.CategoryMedications,
}

func (f Feature) Valid() bool {
	_, ok := featureCategories[f]
	return ok
}

// Category returns the data category the feature processes.
func (f Feature) Category() consent.DataCategory {
	if c, ok := featureCategories[f]; ok {
		return c
	}
	return consent.CategoryPersonalInfo
}

var disclaimers = map[Feature]string{
	FeatureSymptomChecker: "AI Assistance Disclaimer: This is an AI-powered symptom checker that provides " +
		"general health information only. It is NOT a medical diagnosis. Always consult " +
		"a qualified healthcare professional for proper diagnosis and treatment. In case " +
		"of emergency, call emergency services immediately.",
	FeatureMentalHealthChat: "Companion Notice: I'm an AI companion here to listen and support. I am NOT a " +
		"mental health professional or therapist. If you're in crisis or having thoughts " +
		"of self-harm, please reach out to a mental health helpline or emergency services.",
	FeatureDocumentAnalysis: "Document Analysis: Information extracted by AI from your documents. Please verify " +
		"all extracted data for accuracy. This is not a medical interpretation. Consult your " +
		"healthcare provider for clinical decisions.",
	FeatureHealthInsights: "Health Insights: AI-generated observations based on your data. These are informational " +
		"only and should not replace professional medical advice.",
	FeatureMedicationInteraction: "Medication Information: AI-assisted drug interaction check. Always verify with your " +
		"pharmacist or doctor before making any medication changes.",
}

// Disclaimer returns the user-facing notice for a feature. Unknown features
// fall back to the generic insights wording.
func (f Feature) Disclaimer() string {
	if d, ok := disclaimers[f]; ok {
		return d
	}
	return disclaimers[FeatureHealthInsights]
}
