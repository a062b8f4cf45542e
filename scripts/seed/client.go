package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/Lv-up-Planner/initRepo/pkg/httpclient"
)

// apiClient calls the blog API. Every response uses the {"data": ...}
// envelope; non-2xx bodies are mapped back to application errors.
type apiClient struct {
	base string
	http *httpclient.Client
}

func newAPIClient(base string, timeout time.Duration) *apiClient {
	cfg := httpclient.DefaultConfig()
	cfg.Timeout = timeout
	return &apiClient{base: strings.TrimRight(base, "/"), http: httpclient.New(cfg)}
}

func (c *apiClient) register(ctx context.Context, username, password, displayName string) error {
	return c.call(ctx, http.MethodPost, "/api/register", "", map[string]string{
		"username":     username,
		"password":     password,
		"display_name": displayName,
	}, nil)
}

func (c *apiClient) login(ctx context.Context, username, password string) (string, error) {
	var res struct {
		AccessToken string `json:"access_token"`
	}
	err := c.call(ctx, http.MethodPost, "/api/login", "", map[string]string{
		"username": username,
		"password": password,
	}, &res)
	if err != nil {
		return "", err
	}
	if res.AccessToken == "" {
		return "", fmt.Errorf("login response carried no access token")
	}
	return res.AccessToken, nil
}

func (c *apiClient) createTodo(ctx context.Context, token, title string, xp int) (string, error) {
	var todo struct {
		ID string `json:"id"`
	}
	err := c.call(ctx, http.MethodPost, "/api/todos", token, map[string]any{
		"title":     title,
		"xp_reward": xp,
	}, &todo)
	return todo.ID, err
}

func (c *apiClient) completeTodo(ctx context.Context, token, id string) error {
	return c.call(ctx, http.MethodPost, "/api/todos/"+id+"/complete", token, nil, nil)
}

func (c *apiClient) createPost(ctx context.Context, token, title, content string) error {
	return c.call(ctx, http.MethodPost, "/api/posts", token, map[string]string{
		"title":   title,
		"content": content,
	}, nil)
}

func (c *apiClient) call(ctx context.Context, method, path, token string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(ctx, req)
	if err != nil {
		return err
	}
	if resp.StatusCode >= 300 {
		return httpclient.ParseResponseError(resp, "blog")
	}
	defer resp.Body.Close()

	if out == nil {
		return nil
	}
	envelope := struct {
		Data any `json:"data"`
	}{Data: out}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}
