package mgo

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"sync/atomic"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	mongoutil "ActivityBot/data/database/mgo/mongoutil"
)

// Manager owns the MongoDB connection for the process. It is constructed in
// main and handed to whoever needs a database, never looked up globally.
type Manager struct {
	mu        sync.RWMutex
	client    *mongoutil.Client
	readyCh   chan struct{} // 首次就绪通知；只会被 close 一次
	readyOnce sync.Once

	lastErr atomic.Value // error
}

func NewManager() *Manager {
	return &Manager{
		readyCh: make(chan struct{}),
	}
}

// StartAsync: 一直运行到 ctx.Done()；首次连上时 close readyCh，后续掉线会自动重连
func (m *Manager) StartAsync(ctx context.Context, cfg *mongoutil.Config) {
	go func() {
		const (
			baseBackoff = 200 * time.Millisecond
			maxBackoff  = 5 * time.Second
			healthEvery = 10 * time.Second // 健康检查周期
			failThresh  = 3                // 连续失败阈值
		)

		for {
			// ===== 连接阶段（带退避重试） =====
			attempt := 0
			for {
				select {
				case <-ctx.Done():
					return
				default:
				}

				cli, err := mongoutil.NewMongoDB(ctx, cfg)
				if err == nil {
					m.mu.Lock()
					m.client = cli
					m.mu.Unlock()

					// 只在“首次”成功时通知就绪
					m.readyOnce.Do(func() { close(m.readyCh) })

					break // 进入健康检查阶段
				}

				m.lastErr.Store(err)

				// 退避 + 抖动
				backoff := baseBackoff << attempt
				if backoff > maxBackoff {
					backoff = maxBackoff
				}
				jitter := time.Duration(rand.Int63n(int64(backoff / 5)))
				sleep := backoff - jitter/2

				timer := time.NewTimer(sleep)
				select {
				case <-ctx.Done():
					timer.Stop()
					return
				case <-timer.C:
				}
				if attempt < 6 {
					attempt++
				}
			}

			// ===== 健康检查阶段（保持/掉线→重连）=====
			fail := 0
			healthTicker := time.NewTicker(healthEvery)
			func() {
				defer healthTicker.Stop()
				for {
					select {
					case <-ctx.Done():
						// 退出前尽量断开
						m.disconnect()
						return
					case <-healthTicker.C:
						m.mu.RLock()
						c := m.client
						m.mu.RUnlock()

						if c == nil {
							return
						}
						if err := c.GetDB().Client().Ping(ctx, nil); err != nil {
							fail++
							m.lastErr.Store(err)
							if fail >= failThresh {
								// 标记掉线，断开并回到连接阶段
								m.disconnect()
								return
							}
						} else {
							fail = 0
						}
					}
				}
			}() // 健康循环结束后自动回到外层 for 进行重连
		}
	}()
}

func (m *Manager) disconnect() {
	m.mu.Lock()
	if m.client != nil {
		_ = m.client.GetDB().Client().Disconnect(context.Background())
		m.client = nil
	}
	m.mu.Unlock()
}

// Ready: 首次连接成功时会 close；可 select 等待
func (m *Manager) Ready() <-chan struct{} {
	return m.readyCh
}

// Err: 最近一次错误
func (m *Manager) Err() error {
	if v := m.lastErr.Load(); v != nil {
		return v.(error)
	}
	return nil
}

func (m *Manager) DB() (*mongo.Database, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.client == nil {
		return nil, false
	}
	return m.client.GetDB(), true
}

func (m *Manager) WaitReady(ctx context.Context) error {
	m.mu.RLock()
	clientNil := m.client == nil
	m.mu.RUnlock()

	if !clientNil {
		return nil
	}

	select {
	case <-m.readyCh: // 首次成功时会被 close
		return nil
	case <-ctx.Done():
		if err := m.Err(); err != nil {
			return fmt.Errorf("mongo not ready: %w (last error: %v)", ctx.Err(), err)
		}
		return ctx.Err()
	}
}
