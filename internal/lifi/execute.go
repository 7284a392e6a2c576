package lifi

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	xerrors "AgentSwap/internal/errors"
	"AgentSwap/internal/web3"

	"github.com/ethereum/go-ethereum/common"
	coretypes "github.com/ethereum/go-ethereum/core/types"
)

// ExecuteRoute signs and broadcasts every step of route in order. The
// returned route carries an Execution per attempted step. An on-chain revert
// yields a FAILED process and a nil error; transport and signing failures are
// returned as errors alongside the partially executed route. When ctx ends
// while waiting for a receipt the process is left PENDING.
func (c *Client) ExecuteRoute(ctx context.Context, route Route, cfg Config) (*Route, error) {
	if cfg.WalletClient == nil {
		return nil, xerrors.New(xerrors.CodeInvalidArgument, "lifi config has no wallet client")
	}

	executed := route
	executed.Steps = append([]Step(nil), route.Steps...)

	for i := range executed.Steps {
		step := &executed.Steps[i]
		step.Execution = &Execution{Status: StatusPending}

		signer, err := cfg.WalletClient(ctx, step.Action.FromChainID)
		if err != nil {
			step.Execution.Status = StatusFailed
			return &executed, xerrors.Wrap(xerrors.CodeExecutorFailure, err, "resolve wallet client")
		}
		chain, _ := cfg.Chain(step.Action.FromChainID)

		if err := c.executeStep(ctx, signer, chain, step); err != nil {
			return &executed, err
		}
		if step.Execution.Status != StatusDone {
			break
		}
	}
	return &executed, nil
}

func (c *Client) executeStep(ctx context.Context, signer web3.Signer, chain ExtendedChain, step *Step) error {
	exec := step.Execution

	addrs, err := signer.Addresses(ctx)
	if err != nil || len(addrs) == 0 {
		exec.Status = StatusFailed
		if err == nil {
			err = errors.New("wallet has no addresses")
		}
		return xerrors.Wrap(xerrors.CodeExecutorFailure, err, "resolve sender")
	}
	owner := addrs[0]

	approved, err := c.ensureAllowance(ctx, signer, chain, owner, step)
	if err != nil {
		exec.Status = StatusFailed
		return err
	}
	if !approved {
		exec.Status = exec.Approval.Status
		return nil
	}

	exec.Process = append(exec.Process, Process{Type: ProcessSwap, Status: StatusStarted, StartedAt: nowMillis()})
	proc := &exec.Process[len(exec.Process)-1]

	updated, err := c.GetStepTransaction(ctx, *step)
	if err != nil {
		failProcess(proc, "STEP_TRANSACTION_FAILED", err.Error())
		exec.Status = StatusFailed
		return err
	}
	step.TransactionRequest = updated.TransactionRequest
	proc.Status = StatusActionRequired

	req, err := toTxRequest(*updated.TransactionRequest)
	if err != nil {
		failProcess(proc, "INVALID_TRANSACTION", err.Error())
		exec.Status = StatusFailed
		return xerrors.Wrap(xerrors.CodeUpstreamFailure, err, "lifi returned an invalid transaction")
	}

	hash, err := signer.SendTransaction(ctx, req)
	if err != nil {
		failProcess(proc, "TRANSACTION_FAILED", err.Error())
		exec.Status = StatusFailed
		return xerrors.Wrap(xerrors.CodeExecutorFailure, err, "send swap transaction")
	}
	proc.Status = StatusPending
	proc.TxHash = hash.Hex()
	proc.TxLink = txLink(chain, hash)
	proc.Data = updated.TransactionRequest.Data
	exec.Status = StatusPending

	c.logger.Info("swap transaction submitted",
		slog.Int64("chain_id", signer.ChainID()),
		slog.String("tx_hash", proc.TxHash),
		slog.String("tool", step.Tool))

	receipt, err := signer.WaitReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil
		}
		failProcess(proc, "RECEIPT_FAILED", err.Error())
		exec.Status = StatusFailed
		return xerrors.Wrap(xerrors.CodeExecutorFailure, err, "wait for swap receipt")
	}
	if receipt.Status != coretypes.ReceiptStatusSuccessful {
		failProcess(proc, "TRANSACTION_REVERTED", "transaction reverted")
		exec.Status = StatusFailed
		return nil
	}

	proc.Status = StatusDone
	proc.DoneAt = nowMillis()
	exec.Status = StatusDone
	return nil
}

// ensureAllowance approves the step's spender when the current ERC20
// allowance is below the step amount. It reports false when the approval
// did not complete, with the outcome recorded on the execution.
func (c *Client) ensureAllowance(ctx context.Context, signer web3.Signer, chain ExtendedChain, owner common.Address, step *Step) (bool, error) {
	token := step.Action.FromToken.Address
	spenderHex := step.Estimate.ApprovalAddress
	if IsNativeToken(token) || spenderHex == "" {
		return true, nil
	}
	if !common.IsHexAddress(token) || !common.IsHexAddress(spenderHex) {
		return false, xerrors.New(xerrors.CodeUpstreamFailure, "lifi returned an invalid token or approval address")
	}

	amount, err := parseQuantity(step.Action.FromAmount)
	if err != nil || amount == nil {
		return false, xerrors.New(xerrors.CodeUpstreamFailure, fmt.Sprintf("invalid step amount %q", step.Action.FromAmount))
	}
	tokenAddr := common.HexToAddress(token)
	spender := common.HexToAddress(spenderHex)

	query, err := packAllowance(owner, spender)
	if err != nil {
		return false, xerrors.Wrap(xerrors.CodeExecutorFailure, err, "encode allowance call")
	}
	out, err := signer.Call(ctx, web3.CallRequest{To: tokenAddr, Data: query})
	if err != nil {
		return false, xerrors.Wrap(xerrors.CodeExecutorFailure, err, "query allowance")
	}
	current, err := unpackAllowance(out)
	if err != nil {
		return false, xerrors.Wrap(xerrors.CodeExecutorFailure, err, "query allowance")
	}
	if current.Cmp(amount) >= 0 {
		return true, nil
	}

	proc := &Process{Type: ProcessTokenAllowance, Status: StatusStarted, StartedAt: nowMillis()}
	step.Execution.Approval = proc

	data, err := packApprove(spender, amount)
	if err != nil {
		failProcess(proc, "ALLOWANCE_FAILED", err.Error())
		return false, xerrors.Wrap(xerrors.CodeExecutorFailure, err, "encode approve call")
	}
	hash, err := signer.SendTransaction(ctx, web3.TxRequest{To: &tokenAddr, Data: data})
	if err != nil {
		failProcess(proc, "ALLOWANCE_FAILED", err.Error())
		return false, xerrors.Wrap(xerrors.CodeExecutorFailure, err, "send approve transaction")
	}
	proc.Status = StatusPending
	proc.TxHash = hash.Hex()
	proc.TxLink = txLink(chain, hash)

	receipt, err := signer.WaitReceipt(ctx, hash)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return false, nil
		}
		failProcess(proc, "ALLOWANCE_FAILED", err.Error())
		return false, xerrors.Wrap(xerrors.CodeExecutorFailure, err, "wait for approve receipt")
	}
	if receipt.Status != coretypes.ReceiptStatusSuccessful {
		failProcess(proc, "ALLOWANCE_FAILED", "approve transaction reverted")
		return false, nil
	}
	proc.Status = StatusDone
	proc.DoneAt = nowMillis()
	return true, nil
}

func toTxRequest(tr TransactionRequest) (web3.TxRequest, error) {
	if !common.IsHexAddress(tr.To) {
		return web3.TxRequest{}, fmt.Errorf("invalid to address %q", tr.To)
	}
	to := common.HexToAddress(tr.To)

	value, err := parseQuantity(tr.Value)
	if err != nil {
		return web3.TxRequest{}, err
	}
	gasPrice, err := parseQuantity(tr.GasPrice)
	if err != nil {
		return web3.TxRequest{}, err
	}
	gasLimit, err := parseQuantity(tr.GasLimit)
	if err != nil {
		return web3.TxRequest{}, err
	}

	req := web3.TxRequest{
		To:       &to,
		Data:     common.FromHex(tr.Data),
		Value:    value,
		GasPrice: gasPrice,
	}
	if gasLimit != nil {
		if !gasLimit.IsUint64() {
			return web3.TxRequest{}, fmt.Errorf("gas limit %s overflows", gasLimit)
		}
		req.GasLimit = gasLimit.Uint64()
	}
	return req, nil
}

func txLink(chain ExtendedChain, hash common.Hash) string {
	if len(chain.Metamask.BlockExplorerURLs) == 0 || chain.Metamask.BlockExplorerURLs[0] == "" {
		return ""
	}
	return fmt.Sprintf("%s/tx/%s", strings.TrimRight(chain.Metamask.BlockExplorerURLs[0], "/"), hash.Hex())
}

func failProcess(p *Process, code, message string) {
	p.Status = StatusFailed
	p.Error = &ProcessError{Code: code, Message: message}
	p.DoneAt = nowMillis()
}

func nowMillis() int64 { return time.Now().UnixMilli() }
