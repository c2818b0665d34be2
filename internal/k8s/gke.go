package k8s

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	corev1 "k8s.io/api/core/v1"
	metav1 "k8s.io/apimachinery/pkg/apis/meta/v1"
	"k8s.io/client-go/dynamic"
	"k8s.io/client-go/kubernetes"
	"k8s.io/client-go/rest"
)

// TokenSource supplies a short-lived bearer token scoped to the GKE cluster
// master's API server; normally backed by the same application-default
// credentials used for the rest of a crawl.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// NewClientFromGKEDescriptor builds a Client that talks directly to a GKE
// cluster's master endpoint, bypassing kubeconfig entirely: the crawl engine
// reaches into clusters it discovers mid-traversal, it does not manage them
// (unlike NewClient/NewClientFromBytes above, which serve an operator's own
// kubeconfig).
func NewClientFromGKEDescriptor(ctx context.Context, endpoint, caCertB64 string, tokens TokenSource) (*Client, error) {
	token, err := tokens.Token(ctx)
	if err != nil {
		return nil, fmt.Errorf("k8s: fetching GKE master access token: %w", err)
	}
	caData, err := base64.StdEncoding.DecodeString(caCertB64)
	if err != nil {
		return nil, fmt.Errorf("k8s: decoding cluster CA certificate: %w", err)
	}

	config := &rest.Config{
		Host:        "https://" + endpoint,
		BearerToken: token,
		TLSClientConfig: rest.TLSClientConfig{
			CAData: caData,
		},
	}

	clientset, err := kubernetes.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("k8s: building clientset: %w", err)
	}
	dynamicClient, err := dynamic.NewForConfig(config)
	if err != nil {
		return nil, fmt.Errorf("k8s: building dynamic client: %w", err)
	}

	return &Client{
		Clientset:       clientset,
		Dynamic:         dynamicClient,
		Config:          config,
		circuitBreaker:  NewCircuitBreaker(endpoint),
		lastSuccessTime: time.Now(),
	}, nil
}

// ListNamespaces lists every namespace in the cluster, protected by the same
// circuit breaker and retry policy as the rest of this package's outbound
// calls.
func (c *Client) ListNamespaces(ctx context.Context) ([]corev1.Namespace, error) {
	if err := c.waitRateLimit(ctx); err != nil {
		return nil, err
	}
	var result []corev1.Namespace
	err := c.circuitBreaker.Execute(ctx, func() error {
		ctx, cancel := c.withTimeout(ctx)
		defer cancel()
		return doWithRetry(ctx, defaultRetryAttempts, func() error {
			list, err := c.Clientset.CoreV1().Namespaces().List(ctx, metav1.ListOptions{})
			if err != nil {
				return err
			}
			result = list.Items
			return nil
		})
	})
	c.updateHealth(err)
	if err != nil {
		return nil, err
	}
	return result, nil
}

// ListPods lists every pod in namespace.
func (c *Client) ListPods(ctx context.Context, namespace string) ([]corev1.Pod, error) {
	if err := c.waitRateLimit(ctx); err != nil {
		return nil, err
	}
	var result []corev1.Pod
	err := c.circuitBreaker.Execute(ctx, func() error {
		ctx, cancel := c.withTimeout(ctx)
		defer cancel()
		return doWithRetry(ctx, defaultRetryAttempts, func() error {
			list, err := c.Clientset.CoreV1().Pods(namespace).List(ctx, metav1.ListOptions{})
			if err != nil {
				return err
			}
			result = list.Items
			return nil
		})
	})
	c.updateHealth(err)
	if err != nil {
		return nil, err
	}
	return result, nil
}
