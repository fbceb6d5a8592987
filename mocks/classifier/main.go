package main

import (
	"bytes"
	"crypto/sha256"
	"encoding/json"
	"log"
	"net/http"
	"os"
	"strconv"
	"time"
)

const (
	defaultPort      = "8081"
	defaultAPIKey    = "classifier-secret-key"
	defaultLatencyMs = "50"
)

const (
	kindPrimary   = "primary_identity_document"
	kindSecondary = "secondary_identity_document"
	kindVoice     = "voice_sample"
)

type ClassifyRequest struct {
	Kind    string `json:"kind"`
	Content []byte `json:"content"`
}

type ClassifyResponse struct {
	Age             *int   `json:"age,omitempty"`
	Gender          string `json:"gender,omitempty"`
	State           string `json:"state,omitempty"`
	Accent          string `json:"accent,omitempty"`
	PrimaryLanguage string `json:"primary_language,omitempty"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}

var (
	apiKey    = getEnv("API_KEY", defaultAPIKey)
	latencyMs = getEnvInt("LATENCY_MS", defaultLatencyMs)
)

var (
	genders   = []string{"Male", "Female"}
	states    = []string{"Maharashtra", "Delhi", "Karnataka", "Tamil Nadu", "Gujarat", "West Bengal", "Uttar Pradesh", "Kerala"}
	accents   = []string{"Indian English", "Hindi", "Tamil", "Bengali", "Marathi", "Gujarati"}
	languages = []string{"Hindi", "English", "Tamil", "Bengali", "Marathi", "Telugu"}
)

// Content containing one of these markers steers the mock's behavior in e2e runs.
var (
	markerReject = []byte("CLASSIFIER_REJECT")
	markerOutage = []byte("CLASSIFIER_OUTAGE")
	markerSlow   = []byte("CLASSIFIER_SLOW")
	markerMinor  = []byte("CLASSIFIER_MINOR")
)

func main() {
	port := getEnv("PORT", defaultPort)

	http.HandleFunc("/health", handleHealth)
	http.HandleFunc("/classify", handleClassify)

	log.Printf("Mock classifier starting on port %s", port)
	log.Printf("Simulated latency: %dms", latencyMs)

	if err := http.ListenAndServe(":"+port, nil); err != nil {
		log.Fatal(err)
	}
}

func handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "classifier",
		"version": "1.0.0",
	})
}

func handleClassify(w http.ResponseWriter, r *http.Request) {
	time.Sleep(time.Duration(latencyMs) * time.Millisecond)

	if r.Method != http.MethodPost {
		sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	key := r.Header.Get("X-API-Key")
	if key == "" {
		sendError(w, "Missing X-API-Key header", http.StatusUnauthorized)
		return
	}
	if key != apiKey {
		sendError(w, "Invalid API key", http.StatusUnauthorized)
		return
	}

	var req ClassifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		sendError(w, "Invalid request body: "+err.Error(), http.StatusBadRequest)
		return
	}
	if len(req.Content) == 0 {
		sendError(w, "content is required", http.StatusBadRequest)
		return
	}

	switch {
	case bytes.Contains(req.Content, markerOutage):
		sendError(w, "Classifier backend unavailable", http.StatusServiceUnavailable)
		return
	case bytes.Contains(req.Content, markerReject):
		sendError(w, "Evidence could not be read", http.StatusUnprocessableEntity)
		return
	case bytes.Contains(req.Content, markerSlow):
		time.Sleep(10 * time.Second)
	}

	var resp ClassifyResponse
	switch req.Kind {
	case kindPrimary:
		resp = classifyDocument(req.Content)
	case kindVoice:
		resp = classifyVoice(req.Content)
	case kindSecondary:
		// no demographic content
	default:
		sendError(w, "unknown kind: "+req.Kind, http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(resp)

	log.Printf("Classified %s (%d bytes)", req.Kind, len(req.Content))
}

// classifyDocument derives stable attributes from the content hash so the same
// document always reads the same way.
func classifyDocument(content []byte) ClassifyResponse {
	hash := sha256.Sum256(content)
	n := int(hash[0])

	age := 18 + n%50
	if bytes.Contains(content, markerMinor) {
		age = 16
	}
	return ClassifyResponse{
		Age:    &age,
		Gender: genders[int(hash[1])%len(genders)],
		State:  states[int(hash[2])%len(states)],
	}
}

func classifyVoice(content []byte) ClassifyResponse {
	hash := sha256.Sum256(content)
	return ClassifyResponse{
		Accent:          accents[int(hash[0])%len(accents)],
		PrimaryLanguage: languages[int(hash[1])%len(languages)],
	}
}

func sendError(w http.ResponseWriter, message string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   http.StatusText(code),
		Message: message,
		Code:    code,
	})
	log.Printf("Error response: %d - %s", code, message)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key, defaultValue string) int {
	value := getEnv(key, defaultValue)
	intValue, err := strconv.Atoi(value)
	if err != nil {
		log.Printf("Invalid integer value for %s, using default: %s", key, defaultValue)
		intValue, _ = strconv.Atoi(defaultValue)
	}
	return intValue
}
