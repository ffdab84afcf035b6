// Command smoke walks the whole redesign wizard against a running server.
package main

import (
	"bytes"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/fatih/color"
)

type envelope struct {
	Success bool            `json:"success"`
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type state struct {
	WorkspaceId   string  `json:"workspace_id"`
	Step          string  `json:"step"`
	LastError     *string `json:"last_error"`
	DesignOptions []struct {
		Id             string `json:"id"`
		StyleName      string `json:"style_name"`
		FurnitureItems []struct {
			Name   string `json:"name"`
			Stores []struct {
				Name string `json:"name"`
				Url  string `json:"url"`
			} `json:"stores"`
		} `json:"furniture_items"`
	} `json:"design_options"`
}

var (
	baseURL = flag.String("base", "http://localhost:3000/api", "API base URL")
	image   = flag.String("image", "", "room photo to upload")
	wait    = flag.Duration("wait", 10*time.Minute, "how long to wait for designs")
	client  = &http.Client{}
)

// Pretty print JSON helper
func prettyPrint(raw json.RawMessage) {
	var buf bytes.Buffer
	if err := json.Indent(&buf, raw, "", "  "); err != nil {
		fmt.Println(string(raw))
		return
	}
	fmt.Println(buf.String())
}

// Request helper
func send(method, url, contentType string, body io.Reader) (*envelope, error) {
	req, err := http.NewRequest(method, *baseURL+url, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%s %s: %s: %w", method, url, resp.Status, err)
	}
	if !env.Success {
		return &env, fmt.Errorf("%s %s: %d %s", method, url, env.Code, env.Message)
	}
	return &env, nil
}

func sendJSON(method, url string, body interface{}) (*envelope, error) {
	if body == nil {
		return send(method, url, "", nil)
	}
	jsonBody, _ := json.Marshal(body)
	return send(method, url, "application/json", bytes.NewReader(jsonBody))
}

func upload(workspaceId, path string) (*envelope, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	part, err := w.CreateFormFile("image", filepath.Base(path))
	if err != nil {
		return nil, err
	}
	part.Write(data)
	w.Close()

	return send(http.MethodPost, "/workflow/v1/"+workspaceId+"/upload", w.FormDataContentType(), &body)
}

func fail(format string, args ...interface{}) {
	color.Red(format, args...)
	os.Exit(1)
}

func main() {
	flag.Parse()
	if *image == "" {
		fail("usage: smoke -image room.jpg [-base http://localhost:3000/api]")
	}

	color.Cyan("🚀 Starting redesign wizard smoke test\n")

	color.Yellow("\n1. Create workspace")
	env, err := sendJSON(http.MethodPost, "/workflow/v1", nil)
	if err != nil {
		fail("Failed: %v", err)
	}
	var created struct {
		Id string `json:"id"`
	}
	json.Unmarshal(env.Data, &created)
	color.Green("Workspace: %s", created.Id)
	ws := "/workflow/v1/" + created.Id

	color.Yellow("\n2. Upload %s", *image)
	if _, err := upload(created.Id, *image); err != nil {
		fail("Failed: %v", err)
	}
	color.Green("Uploaded")

	color.Yellow("\n3. Set preferences")
	env, err = sendJSON(http.MethodPatch, ws+"/preferences", map[string]string{
		"color_palette":  "warm neutrals",
		"furniture_tier": "affordable",
		"material":       "oak",
	})
	if err != nil {
		fail("Failed: %v", err)
	}
	prettyPrint(env.Data)

	color.Yellow("\n4. Generate designs")
	if _, err := sendJSON(http.MethodPost, ws+"/generate", nil); err != nil {
		fail("Failed: %v", err)
	}

	var st state
	deadline := time.Now().Add(*wait)
	for {
		env, err = sendJSON(http.MethodGet, ws, nil)
		if err != nil {
			fail("Failed: %v", err)
		}
		json.Unmarshal(env.Data, &st)
		if st.Step == "results" {
			break
		}
		if st.Step == "preferences" && st.LastError != nil {
			fail("Generation failed: %s", *st.LastError)
		}
		if time.Now().After(deadline) {
			fail("Timed out in step %s", st.Step)
		}
		fmt.Print(".")
		time.Sleep(3 * time.Second)
	}
	fmt.Println()
	for _, option := range st.DesignOptions {
		color.Green("• %s", option.StyleName)
		for _, item := range option.FurnitureItems {
			fmt.Printf("    %s (%d stores)\n", item.Name, len(item.Stores))
		}
	}
	if len(st.DesignOptions) == 0 {
		fail("No designs returned")
	}
	optionId := st.DesignOptions[0].Id

	color.Yellow("\n5. Open perspective viewer")
	if _, err := sendJSON(http.MethodPost, ws+"/perspective", map[string]string{"option_id": optionId}); err != nil {
		fail("Failed: %v", err)
	}
	color.Green("Perspective synthesis started")

	color.Yellow("\n6. Ask the chatbot")
	env, err = sendJSON(http.MethodPost, "/chat/v1/"+created.Id, map[string]string{
		"message": "Which rug would suit a " + st.DesignOptions[0].StyleName + " living room?",
	})
	if err != nil {
		fail("Failed: %v", err)
	}
	prettyPrint(env.Data)

	color.Yellow("\n7. Restart")
	if _, err := sendJSON(http.MethodPost, ws+"/restart", nil); err != nil {
		fail("Failed: %v", err)
	}

	color.Cyan("\n✅ Smoke test finished")
}
