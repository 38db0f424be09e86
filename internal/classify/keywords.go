// Package classify partitions credit-side transactions into revenue,
// non-revenue, and ambiguous classes by keyword lookup over the payment
// purpose and sender. The keyword sets are closed: changing them changes the
// classification policy.
package classify

// terminalMarkers identify self-deposits through cash-in terminals. They are
// checked before everything else so that top-up wording inside terminal
// deposits cannot escalate to review.
var terminalMarkers = []string{
	"cash in",
	"cash-in",
	"cashin",
	"терминал id",
	"terminal id",
	"наличность в терминалах",
	"пополнение через терминал",
	"внесение наличных через терминал",
	"инкассац",
}

// nonRevenueMarkers identify loans, refunds, own transfers, deposits,
// dividends, salary, taxes, penalties, and currency operations.
var nonRevenueMarkers = []string{
	"возврат",
	"займ",
	"заем",
	"кредит",
	"ссуд",
	"погашение",
	"собственных средств",
	"собственные средства",
	"между своими счетами",
	"перевод между счетами",
	"депозит",
	"вклад",
	"дивиденд",
	"зарплат",
	"заработная плата",
	"налог",
	"штраф",
	"пеня",
	"неустойк",
	"госпошлин",
	"конвертац",
	"обмен валют",
	"продажа валют",
	"покупка валют",
	"loan",
	"refund",
	"repayment",
	"own funds",
	"own account",
	"deposit",
	"dividend",
	"salary",
	"wage",
	"tax payment",
	"penalty",
	"fine payment",
}

// revenueMarkers identify payments for goods and services. Matched against
// the purpose only.
var revenueMarkers = []string{
	"оплата",
	"оплату",
	"предоплата",
	"за товар",
	"за услуг",
	"за работы",
	"по договору",
	"по счету",
	"по счёту",
	"счет-фактур",
	"счёт-фактур",
	"сф №",
	"реализац",
	"выручк",
	"поставк",
	"аренд",
	"payment for",
	"invoice",
	"contract",
	"delivery",
	"for goods",
	"for services",
	"sale of",
	"wildberries",
	"ozon",
	"kaspi",
	"маркетплейс",
	"marketplace",
}

// contextMarkers are top-up and transfer wordings that need review when no
// terminal context is present.
var contextMarkers = []string{
	"пополнение",
	"пополнен",
	"перевод",
	"зачисление",
	"top up",
	"top-up",
	"topup",
	"transfer",
}
