// Package errors はメトリクス集約エンジン全体のエラーハンドリングと警告システムを提供します。
// エンジン固有のエラーは NoOpenWindowError / UnsupportedMetricShapeError /
// EmptyReductionError で、MetricCollisionWarning は警告として通知されます。
package errors

import (
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// ===========================================================================
//
//	グローバル警告ハンドリング
//
// ===========================================================================
var (
	warningMutex   sync.Mutex
	warningHandler = func(w error) {
		// デフォルトのハンドラは標準エラー出力にログを出す
		log.Printf("Lightning-Warning: %v\n", w)
	}
	// zerologロガー（循環importを避けるため遅延初期化）
	zerologWarnFunc func(warning error)
)

// SetWarningHandler はライブラリ全体の警告ハンドラを設定します。
// MetricCollisionWarning などの処理方法を制御できます。
//
// 例:
//
//	errors.SetWarningHandler(func(w error) {
//	    // 警告を無視する
//	})
func SetWarningHandler(handler func(w error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	warningHandler = handler
}

// SetZerologWarnFunc はzerolog警告関数を設定します（循環importを避けるため）。
// nil を渡すと従来のハンドラに戻ります。
func SetZerologWarnFunc(warnFunc func(warning error)) {
	warningMutex.Lock()
	defer warningMutex.Unlock()
	zerologWarnFunc = warnFunc
}

// Warn は警告を発生させます。
// zerologが利用可能な場合は構造化ログとして出力し、そうでなければ従来のハンドラを使用します。
func Warn(w error) {
	warningMutex.Lock()
	defer warningMutex.Unlock()

	if zerologWarnFunc != nil {
		zerologWarnFunc(w)
		return
	}

	if warningHandler != nil {
		warningHandler(w)
	}
}

// ===========================================================================
//
//	警告型
//
// ===========================================================================

// MetricCollisionWarning は同じメトリクス名が異なる粒度 (on_step / on_epoch) の
// 組み合わせで再度ログされた場合、または公開名が既に別のメトリクスに使われている場合の警告です。
// 集約は名前空間付きの公開名で継続されます。
type MetricCollisionWarning struct {
	Metric    string   // ログされたメトリクス名
	Declared  string   // 最初に観測された粒度（例: "on_epoch"）
	Requested string   // 今回要求された粒度（例: "on_step+on_epoch"）
	Resolved  []string // 実際に使われる公開名
	Epoch     int      // 衝突が検出されたエポック
}

func (w *MetricCollisionWarning) Error() string {
	return fmt.Sprintf("metric '%s' first logged with %s, now with %s at epoch %d; publishing as [%s]",
		w.Metric, w.Declared, w.Requested, w.Epoch, strings.Join(w.Resolved, ", "))
}

// MarshalZerologObject はzerologのイベントに構造化された警告情報を追加します。
func (w *MetricCollisionWarning) MarshalZerologObject(e *zerolog.Event) {
	e.Str("metric", w.Metric).
		Str("declared", w.Declared).
		Str("requested", w.Requested).
		Strs("resolved", w.Resolved).
		Int("epoch", w.Epoch).
		Str("type", "MetricCollisionWarning")
}

// NewMetricCollisionWarning は新しいMetricCollisionWarningを作成します。
func NewMetricCollisionWarning(metric, declared, requested string, resolved []string, epoch int) *MetricCollisionWarning {
	return &MetricCollisionWarning{
		Metric:    metric,
		Declared:  declared,
		Requested: requested,
		Resolved:  resolved,
		Epoch:     epoch,
	}
}

// ===========================================================================
//
//	構造化されたエラー型
//
// ===========================================================================

// NoOpenWindowError はエポックもステップも開いていない状態で
// ログ呼び出しやステップ開始が行われた場合のエラーです。リトライは意味を持ちません。
type NoOpenWindowError struct {
	Op     string // "Log", "StartStep" など
	Metric string // ログしようとしたメトリクス名（任意）
}

func (e *NoOpenWindowError) Error() string {
	if e.Metric != "" {
		return fmt.Sprintf("lightning: %s: cannot log '%s': no epoch or step window is open", e.Op, e.Metric)
	}
	return fmt.Sprintf("lightning: %s: no epoch or step window is open", e.Op)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *NoOpenWindowError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("operation", e.Op).
		Str("metric", e.Metric).
		Str("type", "NoOpenWindowError")
}

// NewNoOpenWindowError は新しいNoOpenWindowErrorを作成し、スタックトレースを付与します。
func NewNoOpenWindowError(op, metric string) error {
	err := &NoOpenWindowError{Op: op, Metric: metric}
	return errors.WithStack(err)
}

// UnsupportedMetricShapeError はログされた値がスカラー、または
// スカラーを値に持つ1階層のマッピングとして表現できない場合のエラーです。
type UnsupportedMetricShapeError struct {
	Metric string
	Reason string
	Value  interface{}
}

func (e *UnsupportedMetricShapeError) Error() string {
	return fmt.Sprintf("lightning: unsupported value for metric '%s': %s (got: %T)", e.Metric, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *UnsupportedMetricShapeError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("metric", e.Metric).
		Str("reason", e.Reason).
		Str("value_type", fmt.Sprintf("%T", e.Value)).
		Str("type", "UnsupportedMetricShapeError")
}

// NewUnsupportedMetricShapeError は新しいUnsupportedMetricShapeErrorを作成し、スタックトレースを付与します。
func NewUnsupportedMetricShapeError(metric, reason string, value interface{}) error {
	err := &UnsupportedMetricShapeError{Metric: metric, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// EmptyReductionError は空の値列を集約しようとした場合のエラーです。
// コントローラの規律の下では到達しないはずの内部不変条件違反を示します。
type EmptyReductionError struct {
	Metric string
	Policy string
}

func (e *EmptyReductionError) Error() string {
	if e.Metric == "" {
		return fmt.Sprintf("lightning: cannot apply %s reduction to an empty sequence", e.Policy)
	}
	return fmt.Sprintf("lightning: cannot apply %s reduction to an empty sequence for metric '%s'", e.Policy, e.Metric)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *EmptyReductionError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("metric", e.Metric).
		Str("policy", e.Policy).
		Str("type", "EmptyReductionError")
}

// NewEmptyReductionError は新しいEmptyReductionErrorを作成し、スタックトレースを付与します。
func NewEmptyReductionError(metric, policy string) error {
	err := &EmptyReductionError{Metric: metric, Policy: policy}
	return errors.WithStack(err)
}

// ValidationError は設定パラメータや引数（空のメトリクス名など）の検証に失敗した場合のエラーです。
type ValidationError struct {
	ParamName string
	Reason    string
	Value     interface{}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("lightning: validation failed for parameter '%s': %s (got: %v)", e.ParamName, e.Reason, e.Value)
}

// MarshalZerologObject はzerologのイベントに構造化されたエラー情報を追加します。
func (e *ValidationError) MarshalZerologObject(event *zerolog.Event) {
	event.Str("param_name", e.ParamName).
		Str("reason", e.Reason).
		Interface("value", e.Value).
		Str("type", "ValidationError")
}

// NewValidationError は新しいValidationErrorを作成し、スタックトレースを付与します。
func NewValidationError(param, reason string, value interface{}) error {
	err := &ValidationError{ParamName: param, Reason: reason, Value: value}
	return errors.WithStack(err)
}

// ===========================================================================
//
//	cockroachdb/errors ラッパー関数
//
// ===========================================================================

// Is はエラーが特定のターゲットエラーかどうかを判定します。
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As はエラーが特定の型にキャスト可能かどうかを判定します。
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}

// Wrap は既存のエラーをメッセージ付きでラップします。
func Wrap(err error, message string) error {
	return errors.Wrap(err, message)
}

// Wrapf は既存のエラーをフォーマット文字列でラップします。
func Wrapf(err error, format string, args ...interface{}) error {
	return errors.Wrapf(err, format, args...)
}

// New は新しいエラーを作成します。
func New(message string) error {
	return errors.New(message)
}

// Newf は新しいフォーマット済みエラーを作成します。
func Newf(format string, args ...interface{}) error {
	return errors.Newf(format, args...)
}

// WithStack はエラーにスタックトレースを付与します。
func WithStack(err error) error {
	return errors.WithStack(err)
}

// Join は複数のエラーを1つにまとめます。nil は無視されます。
func Join(errs ...error) error {
	return errors.Join(errs...)
}
