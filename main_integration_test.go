package main_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/exec"
	"syscall"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/auth"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/models"
	"github.com/SaviHomes/barratt-redrow-voices-sub001/internal/utils"
)

const (
	testAppBinary         = "./voices_test_app"
	testAppPort           = "8089"
	testServiceApiPortApi = "8091"
	testServiceApiPortBg  = "8092"
	testAppURL            = "http://localhost:" + testAppPort
	testServiceApiURL     = "http://localhost:" + testServiceApiPortApi
	startupTimeout        = 15 * time.Second
	pingEndpoint          = testAppURL + "/v1/ping"

	adminEmail    = "admin_integration@example.com"
	adminPassword = "StrongP@ssw0rd123"
	testDbName    = "voices_integration_test"
)

// TestMain builds the application binary, seeds an admin user, starts an API
// process and a background worker, and tears everything down afterwards.
// Requires local MongoDB and Redis; skipped when MONGO_URI is not set.
func TestMain(m *testing.M) {
	godotenv.Load()
	if os.Getenv("MONGO_URI") == "" {
		log.Println("MONGO_URI not set; skipping integration tests.")
		return
	}

	defer func() {
		_ = os.Remove(testAppBinary)
	}()

	log.Println("Integration Test Setup: Building application...")
	buildCmd := exec.Command("go", "build", "-o", testAppBinary, ".")
	buildOutput, err := buildCmd.CombinedOutput()
	if err != nil {
		log.Printf("Failed to build application: %v\nOutput:\n%s", err, string(buildOutput))
		os.Exit(1)
	}

	if err := seedTestData(); err != nil {
		log.Printf("Failed to seed test data: %v", err)
		os.Exit(1)
	}
	defer cleanupTestData()

	commonEnv := []string{
		"MONGO_DB_NAME=" + testDbName,
		"JWT_SECRET=integration-test-secret",
		"GIN_MODE=release",
		"MOCK_SERVICES=true",
		"REDIS_ADDR=localhost:6379",
		"SMTP_FROM_ADDRESS=test@example.com",
	}

	apiCmd := exec.Command(testAppBinary, "-m", "api")
	apiCmd.Env = append(os.Environ(), append([]string{
		"API_PORT=" + testAppPort,
		"SERVICE_API_PORT=" + testServiceApiPortApi,
		"RATE_LIMIT_SOFT_BUCKET_SIZE=100",
		"RATE_LIMIT_SOFT_REFILL_RATE=100",
		"RATE_LIMIT_HARD_BUCKET_SIZE=200",
		"RATE_LIMIT_HARD_REFILL_RATE=200",
	}, commonEnv...)...)
	apiCmd.Stderr = os.Stderr
	apiCmd.Stdout = os.Stdout

	log.Println("Integration Test Setup: Starting API process...")
	if err := apiCmd.Start(); err != nil {
		log.Printf("Failed to start API process: %v", err)
		os.Exit(1)
	}

	bgCmd := exec.Command(testAppBinary, "-m", "bg")
	bgCmd.Env = append(os.Environ(), append([]string{
		"SERVICE_API_PORT=" + testServiceApiPortBg,
	}, commonEnv...)...)
	bgCmd.Stderr = os.Stderr
	bgCmd.Stdout = os.Stdout

	log.Println("Integration Test Setup: Starting Background Worker process...")
	if err := bgCmd.Start(); err != nil {
		_ = apiCmd.Process.Kill()
		log.Printf("Failed to start Background Worker process: %v", err)
		os.Exit(1)
	}

	defer func() {
		log.Println("Integration Test Teardown: Shutting down application processes...")
		stopProcess(bgCmd)
		stopProcess(apiCmd)
	}()

	// Wait for the API process to answer pings.
	startTime := time.Now()
	ready := false
	for time.Since(startTime) < startupTimeout {
		resp, err := http.Get(pingEndpoint)
		if err == nil && resp.StatusCode == http.StatusOK {
			bodyBytes, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			if string(bodyBytes) == "pong" {
				ready = true
				break
			}
		}
		if resp != nil {
			resp.Body.Close()
		}
		time.Sleep(200 * time.Millisecond)
	}
	if !ready {
		log.Printf("Application failed to start within %v", startupTimeout)
		os.Exit(1)
	}

	// Give the background worker a moment to register its queues.
	time.Sleep(2 * time.Second)

	m.Run()
}

func stopProcess(cmd *exec.Cmd) {
	if err := cmd.Process.Signal(syscall.SIGTERM); err != nil {
		_ = cmd.Process.Kill()
		return
	}
	_, _ = cmd.Process.Wait()
}

func connectTestMongo() (*mongo.Client, *mongo.Database, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(os.Getenv("MONGO_URI")))
	if err != nil {
		return nil, nil, err
	}
	return client, client.Database(testDbName), nil
}

// seedTestData inserts the admin account the trigger-management tests log in as.
func seedTestData() error {
	client, database, err := connectTestMongo()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	defer client.Disconnect(ctx)

	hash, err := auth.HashPassword(adminPassword)
	if err != nil {
		return err
	}
	admin := models.User{
		Name:         "Integration Admin",
		Email:        adminEmail,
		PasswordHash: hash,
		IsAdmin:      true,
		Activated:    true,
		CreatedAt:    time.Now().UTC(),
		UpdatedAt:    time.Now().UTC(),
	}
	admin.ID = utils.NewSixID()
	_, err = database.Collection("users").InsertOne(ctx, admin)
	return err
}

func cleanupTestData() {
	client, database, err := connectTestMongo()
	if err != nil {
		log.Printf("Cleanup: failed to connect to MongoDB: %v", err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	defer client.Disconnect(ctx)

	if err := database.Drop(ctx); err != nil {
		log.Printf("Cleanup: failed to drop test database: %v", err)
	}
}

func postJSON(t *testing.T, url, token string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, url, bytes.NewReader(payload))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)

	bodyBytes, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	require.NoError(t, err)

	var decoded map[string]interface{}
	if len(bodyBytes) > 0 {
		require.NoError(t, json.Unmarshal(bodyBytes, &decoded), "response body: %s", string(bodyBytes))
	}
	return resp, decoded
}

func loginAdmin(t *testing.T) string {
	t.Helper()
	resp, body := postJSON(t, testAppURL+"/v1/login", "", map[string]interface{}{
		"email":    adminEmail,
		"password": adminPassword,
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, "admin login failed: %v", body)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	return token
}

// getEmailFromServiceAPI polls the service API for a mock email stored under
// (ref, recipient).
func getEmailFromServiceAPI(t *testing.T, ref, recipient string) map[string]interface{} {
	t.Helper()
	payload := map[string]interface{}{
		"method":    "getTestEmail",
		"arguments": []string{ref, recipient},
	}
	deadline := time.Now().Add(15 * time.Second)
	for time.Now().Before(deadline) {
		resp, body := postJSON(t, testServiceApiURL+"/api", "", payload)
		if resp.StatusCode == http.StatusOK {
			data, ok := body["data"].(map[string]interface{})
			require.True(t, ok, "unexpected getTestEmail response: %v", body)
			return data
		}
		time.Sleep(500 * time.Millisecond)
	}
	t.Fatalf("No mock email found for ref=%s recipient=%s", ref, recipient)
	return nil
}

// findTemplateIDByName queries Mongo for a seeded template's id. Templates are
// written by the app at startup.
func findTemplateIDByName(t *testing.T, name string) string {
	t.Helper()
	client, database, err := connectTestMongo()
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	defer client.Disconnect(ctx)

	var tmpl models.EmailTemplate
	err = database.Collection("email_templates").FindOne(ctx, bson.M{"name": name}).Decode(&tmpl)
	require.NoError(t, err, "builtin template %q should have been seeded at startup", name)
	return tmpl.ID.String()
}

func TestIntegration_Ping(t *testing.T) {
	resp, err := http.Get(pingEndpoint)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	bodyBytes, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "pong", string(bodyBytes))
}

// TestIntegration_RegistrationNotification covers the full path: an admin
// binds the welcome template to user_registered, a user registers, and the
// welcome email shows up in the mock outbox.
func TestIntegration_RegistrationNotification(t *testing.T) {
	token := loginAdmin(t)
	templateID := findTemplateIDByName(t, "user_registered_welcome")

	resp, body := postJSON(t, testAppURL+"/v1/admin/triggers", token, map[string]interface{}{
		"event_type":       "user_registered",
		"template_id":      templateID,
		"recipient_config": map[string]interface{}{"type": "submitter"},
		"is_enabled":       true,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "trigger create failed: %v", body)

	userEmail := fmt.Sprintf("newresident_%d@example.com", time.Now().UnixNano())
	resp, body = postJSON(t, testAppURL+"/v1/register", "", map[string]interface{}{
		"name":        "Priya Nand",
		"email":       userEmail,
		"password":    "StrongP@ssw0rd123",
		"development": "Willow Grove",
		"plot_number": "17",
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode, "registration failed: %v", body)

	emailData := getEmailFromServiceAPI(t, "user_registered", userEmail)
	assert.Equal(t, userEmail, emailData["to"])
	subject, _ := emailData["subject"].(string)
	assert.Contains(t, subject, "Welcome")
	emailBody, _ := emailData["body"].(string)
	assert.Contains(t, emailBody, "Priya Nand")
}

// TestIntegration_AdminTestSend exercises the manual test-send path end to end.
func TestIntegration_AdminTestSend(t *testing.T) {
	token := loginAdmin(t)
	templateID := findTemplateIDByName(t, "evidence_approved_submitter")

	recipient := fmt.Sprintf("testsend_%d@example.com", time.Now().UnixNano())
	resp, body := postJSON(t, testAppURL+"/v1/admin/notify/test", token, map[string]interface{}{
		"template_id": templateID,
		"recipients":  []string{recipient},
		"custom_data": map[string]string{"evidenceTitle": "Subsidence cracks in plot 9"},
	})
	require.Equal(t, http.StatusOK, resp.StatusCode, "test send failed: %v", body)

	emailData := getEmailFromServiceAPI(t, "test", recipient)
	emailBody, _ := emailData["body"].(string)
	assert.Contains(t, emailBody, "Subsidence cracks in plot 9")
}

// TestIntegration_AdminRoutesRequireAuth spot-checks the admin guard.
func TestIntegration_AdminRoutesRequireAuth(t *testing.T) {
	resp, _ := postJSON(t, testAppURL+"/v1/admin/notify/test", "", map[string]interface{}{
		"template_id": "AAAAAAAAAA",
		"recipients":  []string{"x@example.com"},
	})
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
